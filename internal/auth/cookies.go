package auth

import "net/http"

const (
	AccessCookieName  = "admin_access_token"
	RefreshCookieName = "admin_refresh_token"
)

func setSessionCookies(w http.ResponseWriter, tokens TokenPair, secure bool) {
	http.SetCookie(w, sessionCookie(AccessCookieName, tokens.AccessToken, int(AccessTokenTTL.Seconds()), secure))
	http.SetCookie(w, sessionCookie(RefreshCookieName, tokens.RefreshToken, int(RefreshTokenTTL.Seconds()), secure))
}

func clearSessionCookies(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, sessionCookie(AccessCookieName, "", -1, secure))
	http.SetCookie(w, sessionCookie(RefreshCookieName, "", -1, secure))
}

func sessionCookie(name, value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
