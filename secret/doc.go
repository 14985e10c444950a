// Package secret resolves configuration values that must not live in plain
// configuration files, such as the bypass credential.
//
// A value is either a literal (after strict environment expansion, see
// ExpandEnvStrict) or a full reference of the form
//
//	secretref:<provider>:<ref>
//
// Built-in providers:
//   - env:  secretref:env:GRAPHCACHE_STUDIO_KEY reads an environment variable
//   - file: secretref:file:/run/secrets/studio_key reads a mounted file
package secret
