// Package memory provides an in-process zone implementation.
//
// A Hub plays the role of the message infrastructure: every Zone handle with
// the same zone id connected to the same Hub exchanges events and queries with
// the others. Records cross the hub in their serialized form and are decoded
// again with the receiving handler's record factory, so a test or demo wired
// through memory zones exercises the same encoding path as a networked one.
//
// Deliveries are asynchronous. Hub.Wait blocks until every delivery started so
// far has been handled:
//
//	hub := memory.NewHub(memory.WithPacketSize(100))
//	pubAgent, _ := agent.New(agent.RolePublisher, memory.NewTransport(hub), pubRegistry, ...)
//	subAgent, _ := agent.New(agent.RoleSubscriber, memory.NewTransport(hub), subRegistry, ...)
//
// Queries that no connected handle can answer are answered with a
// broadcast.ProtocolError.
package memory
