// Package toolkit provides ready-made tools for a relay server.
//
// Use [RegisterAll] to register the core demo set:
//
//	toolkit.RegisterAll(srv.Registry())
//
// For tools that need configuration (glob), use [RegisterConfigurable]:
//
//	toolkit.RegisterConfigurable(srv.Registry(), toolkit.Options{
//	    GlobRoot: "/srv/data",
//	})
package toolkit
