// Package embeddings turns text into fixed-length vectors.
//
// Two providers implement Provider: FastEmbed runs an ONNX model in-process
// (cgo builds only) and Service calls a Text Embeddings Inference server
// over HTTP. Both encode documents and queries the same way, so a query
// vector is comparable with vectors stored at ingestion time as long as
// the model is unchanged.
package embeddings
