package constant

const (
	// DefaultAccessTokenExpiryMin matches the original deployment's one-hour
	// access token lifetime.
	DefaultAccessTokenExpiryMin = 60

	// DefaultRefreshTokenExpiryMin is seven days.
	DefaultRefreshTokenExpiryMin = 10080

	// DefaultResetTokenExpiryMin bounds how long a password-reset link stays
	// usable.
	DefaultResetTokenExpiryMin = 60

	// DefaultVerifyTokenExpiryMin bounds email-verification links (24h).
	DefaultVerifyTokenExpiryMin = 1440

	// DefaultMaxActiveRefreshTokens caps concurrent sessions per user; the
	// oldest token is dropped when the cap is exceeded.
	DefaultMaxActiveRefreshTokens = 5
)
