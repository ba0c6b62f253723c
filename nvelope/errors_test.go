package nvelope_test

import (
	"fmt"
	"testing"

	"github.com/muir/nact"
	"github.com/muir/nact/nvelope"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	assert.Equal(t, 304, nvelope.GetReturnCode(nvelope.ReturnCode(fmt.Errorf("x"), 304)), "unwrapped")
	assert.Equal(t, 303, nvelope.GetReturnCode(errors.Wrap(nvelope.ReturnCode(fmt.Errorf("x"), 303), "o")), "wrapped")
	assert.Equal(t, 400, nvelope.GetReturnCode(nvelope.BadRequest(fmt.Errorf("x"))), "bad")
	assert.Equal(t, 401, nvelope.GetReturnCode(nvelope.Unauthorized(fmt.Errorf("x"))), "unauth")
	assert.Equal(t, 403, nvelope.GetReturnCode(nvelope.Forbidden(fmt.Errorf("x"))), "forbid")
	assert.Equal(t, 404, nvelope.GetReturnCode(nvelope.NotFound(fmt.Errorf("x"))), "not found")
	assert.Equal(t, 500, nvelope.GetReturnCode(fmt.Errorf("x")), "plain")
	assert.Equal(t, 400, nvelope.GetReturnCode(errors.Wrap(&nact.BindError{Param: "p"}, "w")), "bind")
	assert.Equal(t, 409, nvelope.GetReturnCode(nvelope.ReturnCode(&nact.BindError{Param: "p"}, 409)), "explicit wins")
	assert.NoError(t, nvelope.ReturnCode(nil, 500))
	assert.Equal(t, "x", nvelope.BadRequest(fmt.Errorf("x")).Error())
}
