package models

// TokenDetails holds a freshly issued access/refresh token pair.
type TokenDetails struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	AtExpires    int64  `json:"-"`
	RtExpires    int64  `json:"-"`
}
