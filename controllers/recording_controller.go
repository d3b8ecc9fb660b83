package controllers

import (
	"net/http"
	"strconv"

	"pso-monitor-service/internal/error/code"
	"pso-monitor-service/internal/error/response"
	"pso-monitor-service/services"
	"pso-monitor-service/services/container"

	"github.com/gin-gonic/gin"
)

// InterfaceRecordingController 定义录像控制器接口
type InterfaceRecordingController interface {
	StartRecording()
	StopRecording()
	StopAllForUser()
	DeleteRecording()
	GetRecordings()
	GetActiveRecordings()
	GetPlaybackURL()
}

// RecordingController 录像控制器实现
type RecordingController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewRecordingController 创建一个新的录像控制器
func NewRecordingController(ctx *gin.Context, container *container.ServiceContainer) InterfaceRecordingController {
	return &RecordingController{
		Ctx:       ctx,
		Container: container,
	}
}

// 请求结构体定义
type (
	// StartRecordingRequest 发起录像请求
	StartRecordingRequest struct {
		InitiatorExternalID string `json:"initiator_external_id" binding:"required"`
		SubjectEmail        string `json:"subject_email" binding:"required,email"`
	}

	// StopAllRecordingsRequest 批量结束请求
	StopAllRecordingsRequest struct {
		UserEmail string `json:"user_email" binding:"required,email"`
	}

	// PlaybackURLRequest 播放地址请求
	PlaybackURLRequest struct {
		Minutes int `json:"minutes"`
	}
)

// HandleRecordingFunc 返回一个处理录像请求的Gin处理函数
func HandleRecordingFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewRecordingController(ctx, container)

		switch method {
		case "startRecording":
			controller.StartRecording()
		case "stopRecording":
			controller.StopRecording()
		case "stopAllForUser":
			controller.StopAllForUser()
		case "deleteRecording":
			controller.DeleteRecording()
		case "getRecordings":
			controller.GetRecordings()
		case "getActiveRecordings":
			controller.GetActiveRecordings()
		case "getPlaybackURL":
			controller.GetPlaybackURL()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// recordingIDParam 从路径参数解析录像ID
func (c *RecordingController) recordingIDParam() (uint, bool) {
	id, err := strconv.ParseUint(c.Ctx.Param("id"), 10, 32)
	if err != nil {
		response.ParamError(c.Ctx, "无效的录像ID")
		return 0, false
	}
	return uint(id), true
}

// StartRecording 发起录像
// @Summary      Start Recording
// @Description  Start an egress recording for a monitored user's room
// @Tags         Recording
// @Accept       json
// @Produce      json
// @Param        request body StartRecordingRequest true "Start request"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /api/recordings [post]
func (c *RecordingController) StartRecording() {
	var req StartRecordingRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "无效的请求参数: "+err.Error(), nil)
		return
	}

	recordingService := c.Container.GetService("recording").(services.InterfaceRecordingService)
	result, err := recordingService.StartRecording(c.Ctx.Request.Context(), services.KeyByExternalID(req.InitiatorExternalID), req.SubjectEmail)
	if err != nil {
		respondServiceError(c.Ctx, err)
		return
	}

	response.Success(c.Ctx, result)
}

// StopRecording 结束录像
// @Summary      Stop Recording
// @Description  Stop a recording session and finalize its blob
// @Tags         Recording
// @Produce      json
// @Param        id path int true "Recording ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/recordings/{id}/stop [post]
func (c *RecordingController) StopRecording() {
	id, ok := c.recordingIDParam()
	if !ok {
		return
	}

	recordingService := c.Container.GetService("recording").(services.InterfaceRecordingService)
	result, err := recordingService.StopRecording(c.Ctx.Request.Context(), id)
	if err != nil {
		respondServiceError(c.Ctx, err)
		return
	}

	response.Success(c.Ctx, result)
}

// StopAllForUser 结束某用户的全部进行中录像
// @Summary      Stop All Recordings For User
// @Description  Stop every active recording session related to a user
// @Tags         Recording
// @Accept       json
// @Produce      json
// @Param        request body StopAllRecordingsRequest true "Stop-all request"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/recordings/stop-all [post]
func (c *RecordingController) StopAllForUser() {
	var req StopAllRecordingsRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "无效的请求参数: "+err.Error(), nil)
		return
	}

	recordingService := c.Container.GetService("recording").(services.InterfaceRecordingService)
	result, err := recordingService.StopAllForUser(c.Ctx.Request.Context(), services.KeyByEmail(req.UserEmail))
	if err != nil {
		respondServiceError(c.Ctx, err)
		return
	}

	response.Success(c.Ctx, result)
}

// DeleteRecording 删除录像
// @Summary      Delete Recording
// @Description  Delete a recording's blob and database record
// @Tags         Recording
// @Produce      json
// @Param        id path int true "Recording ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/recordings/{id} [delete]
func (c *RecordingController) DeleteRecording() {
	id, ok := c.recordingIDParam()
	if !ok {
		return
	}

	recordingService := c.Container.GetService("recording").(services.InterfaceRecordingService)
	result, err := recordingService.DeleteRecording(c.Ctx.Request.Context(), id)
	if err != nil {
		respondServiceError(c.Ctx, err)
		return
	}

	response.Success(c.Ctx, result)
}

// GetRecordings 查询某用户相关的录像记录
// @Summary      List Recordings For User
// @Tags         Recording
// @Produce      json
// @Param        email query string true "User email"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/recordings [get]
func (c *RecordingController) GetRecordings() {
	email := c.Ctx.Query("email")
	if email == "" {
		response.ParamError(c.Ctx, "缺少 email 参数")
		return
	}

	recordingService := c.Container.GetService("recording").(services.InterfaceRecordingService)
	sessions, err := recordingService.GetRecordingsForUser(services.KeyByEmail(email))
	if err != nil {
		respondServiceError(c.Ctx, err)
		return
	}

	response.Success(c.Ctx, sessions)
}

// GetActiveRecordings 查询全部进行中的录像
// @Summary      List Active Recordings
// @Tags         Recording
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/recordings/active [get]
func (c *RecordingController) GetActiveRecordings() {
	recordingService := c.Container.GetService("recording").(services.InterfaceRecordingService)
	sessions, err := recordingService.GetActiveRecordings()
	if err != nil {
		respondServiceError(c.Ctx, err)
		return
	}

	response.Success(c.Ctx, sessions)
}

// GetPlaybackURL 生成限时播放地址
// @Summary      Get Playback URL
// @Description  Generate a time-limited read URL for a finished recording
// @Tags         Recording
// @Produce      json
// @Param        id path int true "Recording ID"
// @Param        minutes query int false "Validity in minutes"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/recordings/{id}/playback [get]
func (c *RecordingController) GetPlaybackURL() {
	id, ok := c.recordingIDParam()
	if !ok {
		return
	}

	minutes, _ := strconv.Atoi(c.Ctx.DefaultQuery("minutes", "60"))

	recordingService := c.Container.GetService("recording").(services.InterfaceRecordingService)
	session, err := recordingService.GetRecording(id)
	if err != nil {
		respondServiceError(c.Ctx, err)
		return
	}
	if session.BlobPath == nil || *session.BlobPath == "" {
		response.Fail(c.Ctx, code.ErrRecordingStorage, gin.H{"message": "录像没有可用的存储路径"})
		return
	}

	storageService := c.Container.GetService("storage").(services.InterfaceStorageService)
	sasURL, err := storageService.GenerateReadSasURL(*session.BlobPath, minutes)
	if err != nil {
		respondServiceError(c.Ctx, err)
		return
	}

	response.Success(c.Ctx, gin.H{"url": sasURL, "minutes": minutes})
}
