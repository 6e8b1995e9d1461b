package mw

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// UserHeader carries the acting user's id. Authentication happens upstream.
const UserHeader = "X-User-ID"

const actorKey = "actor_id"

// Actor parses the acting user from UserHeader. A missing header is allowed;
// a malformed one is rejected.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserHeader)
		if raw == "" {
			c.Next()
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + UserHeader + " header"})
			return
		}
		c.Set(actorKey, id)
		c.Next()
	}
}

// ActorID returns the acting user set by Actor, or nil.
func ActorID(c *gin.Context) *int64 {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	id := v.(int64)
	return &id
}
