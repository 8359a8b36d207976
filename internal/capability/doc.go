// Package capability implements the generation backends the orchestrator
// routes commands to: conversation, image, music, and video. Each backend
// satisfies the Executor interface and returns either a text reply or a
// binary payload for the artifact store.
package capability
