package errno

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestConvertErrExtractsWrappedErrNo(t *testing.T) {
	wrapped := errors.WithMessage(UserNotExistErr, "graph 查询失败")
	e := ConvertErr(wrapped)
	assert.Equal(t, UserNotExistCode, e.ErrCode)
}

func TestConvertErrKeepsDetailForLogging(t *testing.T) {
	e := ConvertErr(errors.New("dial tcp 127.0.0.1:3306: connection refused"))
	assert.Equal(t, ServiceErrCode, e.ErrCode)
	assert.Contains(t, e.ErrMsg, "connection refused")
}

func TestClientFacingHidesInternalDetail(t *testing.T) {
	// 内部错误出站时换成通用描述，驱动报错文本不外泄
	e := ConvertErr(errors.New("graph.FollowingIDs 查询失败: Error 1045 (28000)"))
	out := e.ClientFacing()
	assert.Equal(t, ServiceErrCode, out.ErrCode)
	assert.Equal(t, ServiceErr.ErrMsg, out.ErrMsg)
	assert.NotContains(t, out.ErrMsg, "1045")
}

func TestClientFacingKeepsDomainErrors(t *testing.T) {
	out := InvalidCursorErr.ClientFacing()
	assert.Equal(t, InvalidCursorErr, out)
}
