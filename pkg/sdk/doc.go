// Package vecembed turns JSON documents into vector embeddings from Go code.
//
// It runs the same pipeline as the vecembed command: the selected fields of
// every document are concatenated, embedded in batches by a remote
// OpenAI-compatible API, a local model or a caller-supplied embedder, and
// rendered in a vector index ingestion format.
//
//	client, _ := vecembed.New(ctx,
//	    vecembed.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	    vecembed.WithValkeyCache("localhost:6379", "", 24*time.Hour),
//	)
//	defer client.Close()
//
//	err := client.ConvertJSON(ctx, os.Stdin, os.Stdout,
//	    []string{"title", "overview"}, vecembed.StylePointList)
package vecembed
