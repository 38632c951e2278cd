package domain

// AuthProvider identifies how an account authenticates.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "LOCAL"
	ProviderGoogle AuthProvider = "GOOGLE"
	ProviderGitHub AuthProvider = "GITHUB"
)

// IsValidProvider checks if the provider is supported
func IsValidProvider(p string) bool {
	switch AuthProvider(p) {
	case ProviderLocal, ProviderGoogle, ProviderGitHub:
		return true
	default:
		return false
	}
}

// IsOAuth reports whether accounts of this provider authenticate externally.
func (p AuthProvider) IsOAuth() bool {
	return p == ProviderGoogle || p == ProviderGitHub
}
