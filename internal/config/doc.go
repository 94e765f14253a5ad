// Package config loads wherefn.yaml with viper.
//
//	specs:
//	  dir: specs
//	cache:
//	  backend: sqlite        # none | memory | sqlite | redis
//	  sqlite:
//	    path: .wherefn/cache.db
//	  redis:
//	    addr: localhost:6379
//	    prefix: "wherefn:unit:"
//	    ttl: 1h
//	log:
//	  level: info
//
// Every key can be overridden from the environment with the WHEREFN_
// prefix and dots replaced by underscores (WHEREFN_CACHE_BACKEND).
package config
