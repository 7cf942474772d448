// Package agent runs the publishers or subscribers of one process against a set
// of zones.
//
// An Agent owns a Transport, which connects to the message infrastructure and
// creates zones, and a Registry, which maps object types to factories that
// build broadcast engines. The lifecycle moves forward only:
//
//	created -> initializing -> initialized -> started -> shutting_down -> shutdown
//
// Initialize loads the configuration, brings up the transport, creates every
// configured zone, builds the engines selected by the configuration and then
// calls StartAgent. StartAgent registers each engine with each zone and
// connects the zones one by one. When a zone fails to connect, the zones that
// were already connected are disconnected again and a *broadcast.ConnectionError
// is returned, leaving no partial provisioning behind.
//
// Shutdown stops the engine timers, leaves every zone with the role's shutdown
// flags and shuts the transport down. It is safe to call more than once.
//
// # Usage
//
//	reg := agent.NewRegistry()
//	_ = reg.RegisterPublisher("StudentPersonal", newStudentPublisher)
//
//	a, err := agent.New(agent.RolePublisher, memory.NewTransport(hub), reg,
//	    agent.WithConfigFile(agent.DefaultPublisherConfig),
//	    agent.WithLogger(log),
//	)
//	if err != nil {
//	    return err
//	}
//	return a.Run(ctx) // blocks until ctx is cancelled
//
// # Configuration
//
// Configuration is YAML, decoded with core/config and validated with
// go-playground/validator. The protocol version must be a semantic version.
// Objects listed under "publishers" or "subscribers" are started explicitly and
// must be registered; when the lists are empty every registered object type
// with "enabled: true" is started.
package agent
