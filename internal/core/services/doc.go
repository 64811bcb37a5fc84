// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters):
//
//   - AuthService: loopback login with PKCE, credential status and logout
//   - PickerService: a Picker session from creation to cleanup
//   - SettingsService: validated edits of the configuration file
package services
