package conversation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jan-server/services/session-api/internal/interfaces/httpserver/handlers/conversationhandler"
	"jan-server/services/session-api/internal/interfaces/httpserver/middlewares"
	conversationrequests "jan-server/services/session-api/internal/interfaces/httpserver/requests/conversation"
	"jan-server/services/session-api/internal/interfaces/httpserver/responses"
	conversationresponses "jan-server/services/session-api/internal/interfaces/httpserver/responses/conversation"
	"jan-server/services/session-api/internal/utils/platformerrors"
)

const conversationIDParam = "conv_id"

type ConversationRoute struct {
	handler *conversationhandler.ConversationHandler
}

func NewConversationRoute(handler *conversationhandler.ConversationHandler) *ConversationRoute {
	return &ConversationRoute{handler: handler}
}

func (route *ConversationRoute) RegisterRouter(router gin.IRouter) {
	conversations := router.Group("/conversations")
	conversations.GET("", route.listConversations)
	conversations.POST("", route.createConversation)
	conversations.GET("/:conv_id", route.getConversation)
	conversations.DELETE("/:conv_id", route.deleteConversation)
	conversations.POST("/:conv_id/messages", route.sendMessage)
	conversations.PATCH("/:conv_id/title", route.renameConversation)
	conversations.PATCH("/:conv_id/archive", route.archiveConversation)
	conversations.PUT("/:conv_id/tags", route.setTags)
}

func ownerID(reqCtx *gin.Context) (string, bool) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok || principal.ID == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required", "3296ce86-783b-4c05-9fdb-930d3713024e")
		return "", false
	}
	return principal.ID, true
}

// listConversations returns one page of the caller's conversations, most recently active first.
func (route *ConversationRoute) listConversations(reqCtx *gin.Context) {
	owner, ok := ownerID(reqCtx)
	if !ok {
		return
	}

	var params conversationrequests.ListConversationsQueryParams
	if err := reqCtx.ShouldBindQuery(&params); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid query parameters", "f8a3d4e2-6b9c-4d7e-a1f3-2c5e8d9f0b4a")
		return
	}

	response, err := route.handler.ListConversations(reqCtx.Request.Context(), owner, params)
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to list conversations")
		return
	}
	reqCtx.JSON(http.StatusOK, response)
}

func (route *ConversationRoute) createConversation(reqCtx *gin.Context) {
	owner, ok := ownerID(reqCtx)
	if !ok {
		return
	}

	var req conversationrequests.CreateConversationRequest
	if reqCtx.Request.ContentLength != 0 {
		if err := reqCtx.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body", "b9c8d7e6-f5a4-4d3e-a1b2-0c9d8e7f6a5b")
			return
		}
	}

	response, err := route.handler.CreateConversation(reqCtx.Request.Context(), owner, req)
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to create conversation")
		return
	}
	reqCtx.JSON(http.StatusCreated, response)
}

func (route *ConversationRoute) getConversation(reqCtx *gin.Context) {
	owner, ok := ownerID(reqCtx)
	if !ok {
		return
	}

	response, err := route.handler.GetConversation(reqCtx.Request.Context(), owner, reqCtx.Param(conversationIDParam))
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to get conversation")
		return
	}
	reqCtx.JSON(http.StatusOK, response)
}

// sendMessage appends the user message and the assistant reply. When the provider fails the
// response is 502 and still carries the conversation with the degraded reply.
func (route *ConversationRoute) sendMessage(reqCtx *gin.Context) {
	owner, ok := ownerID(reqCtx)
	if !ok {
		return
	}

	var req conversationrequests.SendMessageRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "message is required and model must be supported", "7c1e9d0a-3b4f-4e8a-9c2d-5f6a7b8c9d0e")
		return
	}

	response, err := route.handler.SendMessage(reqCtx.Request.Context(), owner, reqCtx.Param(conversationIDParam), req)
	if err != nil {
		if conversationhandler.IsDegraded(response, err) {
			status, errResp := responses.NewErrorResponse(reqCtx, err, "Completion provider failed")
			_ = reqCtx.Error(err)
			reqCtx.AbortWithStatusJSON(status, conversationresponses.SendMessageErrorResponse{
				ErrorResponse: errResp,
				Details:       response.FailureDetail,
				Conversation:  response.Conversation,
			})
			return
		}
		responses.HandleError(reqCtx, err, "Failed to send message")
		return
	}
	reqCtx.JSON(http.StatusOK, response)
}

func (route *ConversationRoute) renameConversation(reqCtx *gin.Context) {
	owner, ok := ownerID(reqCtx)
	if !ok {
		return
	}

	var req conversationrequests.RenameConversationRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "title is required", "1d2e3f4a-5b6c-4d7e-8f9a-0b1c2d3e4f5a")
		return
	}

	response, err := route.handler.RenameConversation(reqCtx.Request.Context(), owner, reqCtx.Param(conversationIDParam), req)
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to rename conversation")
		return
	}
	reqCtx.JSON(http.StatusOK, response)
}

func (route *ConversationRoute) archiveConversation(reqCtx *gin.Context) {
	owner, ok := ownerID(reqCtx)
	if !ok {
		return
	}

	var req conversationrequests.ArchiveConversationRequest
	if reqCtx.Request.ContentLength != 0 {
		if err := reqCtx.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body", "2e3f4a5b-6c7d-4e8f-9a0b-1c2d3e4f5a6b")
			return
		}
	}

	response, err := route.handler.ArchiveConversation(reqCtx.Request.Context(), owner, reqCtx.Param(conversationIDParam), req)
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to archive conversation")
		return
	}
	reqCtx.JSON(http.StatusOK, response)
}

func (route *ConversationRoute) setTags(reqCtx *gin.Context) {
	owner, ok := ownerID(reqCtx)
	if !ok {
		return
	}

	var req conversationrequests.SetTagsRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "at most 10 tags of up to 32 characters", "3f4a5b6c-7d8e-4f9a-0b1c-2d3e4f5a6b7c")
		return
	}

	response, err := route.handler.SetTags(reqCtx.Request.Context(), owner, reqCtx.Param(conversationIDParam), req)
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to update tags")
		return
	}
	reqCtx.JSON(http.StatusOK, response)
}

func (route *ConversationRoute) deleteConversation(reqCtx *gin.Context) {
	owner, ok := ownerID(reqCtx)
	if !ok {
		return
	}

	response, err := route.handler.DeleteConversation(reqCtx.Request.Context(), owner, reqCtx.Param(conversationIDParam))
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to delete conversation")
		return
	}
	reqCtx.JSON(http.StatusOK, response)
}
