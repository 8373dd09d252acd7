// Package redis connects to Redis with github.com/redis/go-redis/v9.
//
// Connect retries until the server answers PING, which lets the service
// start before Redis does. Healthcheck adapts a client to the readiness probe
// signature used by the HTTP server.
//
//	cfg := config.MustLoad[redis.Config]()
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// The client backs the distributed uniqueness lock in pkg/queue.
package redis
