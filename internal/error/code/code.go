package code

// HTTP状态码.
const (
	// StatusOK - 200: 成功.
	StatusOK = 200
	// StatusBadRequest - 400: 请求参数错误.
	StatusBadRequest = 400
	// StatusUnauthorized - 401: 未授权.
	StatusUnauthorized = 401
	// StatusForbidden - 403: 禁止访问.
	StatusForbidden = 403
	// StatusNotFound - 404: 资源不存在.
	StatusNotFound = 404
	// StatusConflict - 409: 资源冲突.
	StatusConflict = 409
	// StatusInternalServerError - 500: 服务器内部错误.
	StatusInternalServerError = 500
	// StatusBadGateway - 502: 上游服务错误.
	StatusBadGateway = 502
)

// 通用错误码 (100xxx).
const (
	// ErrSuccess - 200: 成功.
	ErrSuccess int = iota + 100000
	// ErrUnknown - 500: 未知错误.
	ErrUnknown
	// ErrBind - 400: 请求参数绑定错误.
	ErrBind
	// ErrValidation - 400: 请求参数验证错误.
	ErrValidation
	// ErrTokenInvalid - 401: 令牌无效.
	ErrTokenInvalid
)

// 用户相关错误码 (101xxx).
const (
	// ErrUserNotFound - 404: 用户不存在.
	ErrUserNotFound int = iota + 101000
	// ErrUserKeyEmpty - 400: 用户标识为空.
	ErrUserKeyEmpty
	// ErrUserTerminated - 400: 用户已离职.
	ErrUserTerminated
)

// 指令相关错误码 (102xxx).
const (
	// ErrCommandInvalid - 400: 指令类型不合法.
	ErrCommandInvalid int = iota + 102000
	// ErrCommandDelivery - 500: 指令投递失败.
	ErrCommandDelivery
)

// 录像相关错误码 (103xxx).
const (
	// ErrRecordingNotFound - 404: 录像记录不存在.
	ErrRecordingNotFound int = iota + 103000
	// ErrRecordingEgress - 502: 媒体出口服务器错误.
	ErrRecordingEgress
	// ErrRecordingStorage - 502: 录像存储错误.
	ErrRecordingStorage
)

// 对讲相关错误码 (104xxx).
const (
	// ErrTalkNotFound - 404: 对讲会话不存在.
	ErrTalkNotFound int = iota + 104000
	// ErrTalkOccupied - 409: 对讲对象已被占用.
	ErrTalkOccupied
)

// 主管变更相关错误码 (105xxx).
const (
	// ErrSupervisorChange - 500: 主管变更失败.
	ErrSupervisorChange int = iota + 105000
	// ErrSupervisorRole - 400: 目标不是主管角色.
	ErrSupervisorRole
)

// 数据库相关错误码 (106xxx).
const (
	// ErrDatabase - 500: 数据库错误.
	ErrDatabase int = iota + 106000
	// ErrRecordNotFound - 404: 记录不存在.
	ErrRecordNotFound
)

// 外部服务相关错误码 (107xxx).
const (
	// ErrExternalService - 502: 外部服务错误.
	ErrExternalService int = iota + 107000
	// ErrBroadcastFailed - 502: 广播通道错误.
	ErrBroadcastFailed
)
