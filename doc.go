// FILE: lixenwraith/forgeconfig/doc.go

// Package forgeconfig resolves a build tool's effective configuration from a
// project directory.
//
// Resolution runs four stages:
//   - Load: read package.json and take config.forge as an inline record, or as
//     a path to a configuration module; without it, try forge.config.<ext>.
//     Modules are evaluated by SourceProviders (JSON/YAML/TOML, Lua, HCL).
//   - Variants: replace every FromBuildIdentifier selector with the value for
//     the top-level buildIdentifier field.
//   - Defaults: overlay the result onto the baseline shape (empty
//     packagerConfig and rebuildConfig, empty makers, publishers and plugins).
//   - Wrap: return a Node whose reads fall back to environment variables
//     derived from the key path, for example s3.secretAccessKey reads
//     ELECTRON_FORGE_S3_SECRET_ACCESS_KEY when the record has no such key.
//
// Quick Start:
//
//	cfg, err := forgeconfig.Resolve(ctx, projectDir)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	bucket, _ := cfg.Lookup("s3.bucket")
//	secret, _ := cfg.Lookup("s3.secretAccessKey") // env fallback
//
// Environment values are read on every access and never stored. A value
// written with Set or SetPath always wins over the environment afterwards.
//
// Thread Safety:
// Each resolved configuration guards its records with one mutex, so a Node and
// its children may be shared across goroutines.
package forgeconfig
