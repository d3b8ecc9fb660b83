package code

// 错误码消息映射
var codeMessageMap = map[int]string{
	// 通用错误码
	ErrSuccess:      "成功",
	ErrUnknown:      "未知错误",
	ErrBind:         "请求参数绑定错误",
	ErrValidation:   "请求参数验证错误",
	ErrTokenInvalid: "无效的认证令牌",

	// 用户相关错误码
	ErrUserNotFound:   "用户不存在",
	ErrUserKeyEmpty:   "用户标识为空",
	ErrUserTerminated: "用户已离职",

	// 指令相关错误码
	ErrCommandInvalid:  "指令类型不合法",
	ErrCommandDelivery: "指令投递失败",

	// 录像相关错误码
	ErrRecordingNotFound: "录像记录不存在",
	ErrRecordingEgress:   "媒体出口服务器错误",
	ErrRecordingStorage:  "录像存储错误",

	// 对讲相关错误码
	ErrTalkNotFound: "对讲会话不存在",
	ErrTalkOccupied: "对讲对象已在其他会话中",

	// 主管变更相关错误码
	ErrSupervisorChange: "主管变更失败",
	ErrSupervisorRole:   "目标不是主管角色",

	// 数据库相关错误码
	ErrDatabase:       "数据库错误",
	ErrRecordNotFound: "记录不存在",

	// 外部服务相关错误码
	ErrExternalService: "外部服务错误",
	ErrBroadcastFailed: "广播通道错误",
}

// 错误码HTTP状态码映射
var codeStatusMap = map[int]int{
	// 通用错误码
	ErrSuccess:      StatusOK,
	ErrUnknown:      StatusInternalServerError,
	ErrBind:         StatusBadRequest,
	ErrValidation:   StatusBadRequest,
	ErrTokenInvalid: StatusUnauthorized,

	// 用户相关错误码
	ErrUserNotFound:   StatusNotFound,
	ErrUserKeyEmpty:   StatusBadRequest,
	ErrUserTerminated: StatusBadRequest,

	// 指令相关错误码
	ErrCommandInvalid:  StatusBadRequest,
	ErrCommandDelivery: StatusInternalServerError,

	// 录像相关错误码
	ErrRecordingNotFound: StatusNotFound,
	ErrRecordingEgress:   StatusBadGateway,
	ErrRecordingStorage:  StatusBadGateway,

	// 对讲相关错误码
	ErrTalkNotFound: StatusNotFound,
	ErrTalkOccupied: StatusConflict,

	// 主管变更相关错误码
	ErrSupervisorChange: StatusInternalServerError,
	ErrSupervisorRole:   StatusBadRequest,

	// 数据库相关错误码
	ErrDatabase:       StatusInternalServerError,
	ErrRecordNotFound: StatusNotFound,

	// 外部服务相关错误码
	ErrExternalService: StatusBadGateway,
	ErrBroadcastFailed: StatusBadGateway,
}

// GetMessage 获取错误码对应的消息
func GetMessage(code int) string {
	if msg, ok := codeMessageMap[code]; ok {
		return msg
	}
	return "未知错误"
}

// GetStatus 获取错误码对应的HTTP状态码
func GetStatus(code int) int {
	if status, ok := codeStatusMap[code]; ok {
		return status
	}
	return StatusInternalServerError
}
