// Package vecmatch is an embedded Go client for the vecmatch candidate/vacancy
// matching engine. It runs the ranking and embedding pipeline in-process on
// top of Redis or process memory, without the HTTP server.
//
//	client, _ := vecmatch.New(ctx,
//	    vecmatch.WithRedis("localhost:6379", ""),
//	    vecmatch.WithEmbedder(myEmbedder),
//	)
//	defer client.Close()
//
//	_, _ = client.Embed(ctx, vecmatch.EmbedRequest{
//	    EntityID: "c-1", EntityType: vecmatch.Candidate,
//	    Category: vecmatch.Skills, Text: "Go, Kubernetes, PostgreSQL",
//	})
//	ranking, _ := client.Rank(ctx, "c-1", vecmatch.RankOptions{TopK: 10})
package vecmatch
