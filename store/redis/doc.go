// Package redis implements store.Store using Redis Hashes for entities
// and Sets for enumeration. Suitable for high-throughput deployments
// where durability requirements are met by Redis persistence settings.
//
// The caller owns the Redis client lifecycle -- Close is a no-op. Pass
// the client through the constructor:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
//
// List operations enumerate the ID set and filter in memory, so they are
// O(n) in the number of stored entities. Use the SQL backends when large
// filtered listings dominate the workload.
package redis
