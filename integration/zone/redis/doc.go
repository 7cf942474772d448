// Package redis implements zones over Redis pub/sub.
//
// Every zone uses a fixed channel layout:
//
//	zonecast:<zone>:event:<object type>      change events
//	zonecast:<zone>:request:<object type>    queries
//	zonecast:<zone>:response:<agent id>      answers to this agent's queries
//	zonecast:<zone>:agents                   set of registered agents
//
// Messages are JSON envelopes carrying serialized records. Queries travel with
// their conditions and are answered by every connected publisher of the object
// type; large answers are split into packets with the MorePackets flag set on
// all but the last. A query nobody listens to is answered locally with a
// "no provider" broadcast.ProtocolError.
//
// The Redis client is created by integration/database/redis and owned by the
// caller:
//
//	client, err := dbredis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//	transport := redis.NewTransport(client, redis.WithLogger(log))
package redis
