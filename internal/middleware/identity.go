package middleware

// identity.go defines helper functions shared across middleware files.
// currentUserID pulls the user id that JWTAuth stored in the Echo context
// and renders it as a string for use in rate-limit keys.  Requests on
// public routes carry no identity and map to "anon".

import (
    "fmt"

    "github.com/labstack/echo/v4"
)

// currentUserID returns a string form of the authenticated user's id, or
// "anon" when the request is unauthenticated.
func currentUserID(c echo.Context) string {
    v := c.Get("user_id")
    if v == nil {
        return "anon"
    }
    switch t := v.(type) {
    case string:
        if t != "" {
            return t
        }
    case uint64, int64, int, float64:
        return fmt.Sprint(t)
    }
    return "anon"
}
