package flows

// Deps bundles the per-operation dependency sets. The engine assembles it
// once at build time.
type Deps struct {
	Issue    IssueDeps
	Validate ValidateDeps
	Refresh  RefreshDeps
	Logout   LogoutDeps
	Login    LoginDeps
}
