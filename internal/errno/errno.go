package errno

import (
	"errors"
	"fmt"
	"net/http"

	"pulseFeed/internal/constants"
)

// 错误码分段：10001-10099 通用，101xx 关系图，102xx 内容，103xx 订阅源，104xx 游标，105xx 存储
const (
	SuccessCode           = 0
	ServiceErrCode        = 10001
	ParamErrCode          = 10002
	UserNotExistCode      = 10003
	UserAlreadyExistCode  = 10004
	PasswordErrCode       = 10005
	TokenInvalidCode      = 10006
	PermissionErrCode     = 10007
	SelfFollowErrCode     = 10101
	PostNotExistCode      = 10201
	FeedNotExistCode      = 10301
	UnsupportedFilterCode = 10302
	InvalidCursorCode     = 10401
	StoreTimeoutCode      = 10501
)

// ErrNo 携带错误码的错误值，跨层传递后由 ConvertErr 还原
type ErrNo struct {
	ErrCode int
	ErrMsg  string
}

func (e ErrNo) Error() string {
	return fmt.Sprintf("err_code=%d, err_msg=%s", e.ErrCode, e.ErrMsg)
}

func NewErrNo(code int, msg string) ErrNo {
	return ErrNo{ErrCode: code, ErrMsg: msg}
}

// WithMessage 返回替换了描述的副本，错误码不变
func (e ErrNo) WithMessage(msg string) ErrNo {
	e.ErrMsg = msg
	return e
}

var (
	Success              = NewErrNo(SuccessCode, "成功")
	ServiceErr           = NewErrNo(ServiceErrCode, "服务内部错误")
	ParamErr             = NewErrNo(ParamErrCode, constants.ErrInvalidParams)
	UserNotExistErr      = NewErrNo(UserNotExistCode, constants.ErrUserNotFound)
	UserAlreadyExistErr  = NewErrNo(UserAlreadyExistCode, constants.ErrUserExists)
	PasswordErr          = NewErrNo(PasswordErrCode, constants.ErrPasswordIncorrect)
	TokenInvalidErr      = NewErrNo(TokenInvalidCode, constants.ErrUnauthorized)
	PermissionErr        = NewErrNo(PermissionErrCode, "权限不足")
	SelfFollowErr        = NewErrNo(SelfFollowErrCode, constants.ErrSelfFollow)
	PostNotExistErr      = NewErrNo(PostNotExistCode, constants.ErrPostNotFound)
	FeedNotExistErr      = NewErrNo(FeedNotExistCode, constants.ErrFeedNotFound)
	UnsupportedFilterErr = NewErrNo(UnsupportedFilterCode, "不支持的过滤块")
	InvalidCursorErr     = NewErrNo(InvalidCursorCode, constants.ErrInvalidCursor)
	StoreTimeoutErr      = NewErrNo(StoreTimeoutCode, "存储访问超时")
)

// ConvertErr 从任意 error 中提取 ErrNo；非 ErrNo 的错误一律归为 ServiceErr。
// 携带的原始描述只供日志使用，出站响应要先过 ClientFacing
func ConvertErr(err error) ErrNo {
	e := ErrNo{}
	if errors.As(err, &e) {
		return e
	}
	s := ServiceErr
	s.ErrMsg = err.Error()
	return s
}

// ClientFacing 返回可直接出站的副本：内部错误统一换成通用描述，
// 存储层/驱动的报错文本不外泄
func (e ErrNo) ClientFacing() ErrNo {
	if e.ErrCode == ServiceErrCode {
		return ServiceErr
	}
	return e
}

// HTTPStatus 错误码到 HTTP 状态码的映射
func (e ErrNo) HTTPStatus() int {
	switch e.ErrCode {
	case SuccessCode:
		return http.StatusOK
	case ParamErrCode, SelfFollowErrCode, UnsupportedFilterCode, InvalidCursorCode, PasswordErrCode, UserAlreadyExistCode:
		return http.StatusBadRequest
	case TokenInvalidCode:
		return http.StatusUnauthorized
	case PermissionErrCode:
		return http.StatusForbidden
	case UserNotExistCode, PostNotExistCode, FeedNotExistCode:
		return http.StatusNotFound
	case StoreTimeoutCode:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
