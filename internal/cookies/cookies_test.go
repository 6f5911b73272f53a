package cookies

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCreate(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	c := Create(AccessToken, "v", "/", exp)

	assert.Equal(t, "v", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, exp, c.Expires)
}

func TestDelete(t *testing.T) {
	c := Delete(RefreshToken, "/")
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
}
