// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
//   - CredentialStore: Durable credential persistence (file, sqlite, memory)
//   - CredentialWatcher: Reports credentials removed outside the process
//   - TokenRefresher: Exchanges a refresh token at the authorization endpoint
//   - TokenProvider: Hands out valid access tokens for one identity
//   - CredentialManager: Credential lifecycle across identities
//   - LoginFlow, RedirectReceiver: Authorization code grant with a loopback redirect
//   - PickerClient: Google Photos Picker sessions
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
