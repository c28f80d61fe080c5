package conversation

type CreateConversationRequest struct {
	Title *string `json:"title,omitempty"`
	Model *string `json:"model,omitempty" binding:"omitempty,model_id"`
}

type ListConversationsQueryParams struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	Limit    int    `form:"limit" binding:"omitempty,min=1"`
	Archived bool   `form:"archived"`
	Tag      string `form:"tag" binding:"omitempty,max=32"`
}

type SendMessageRequest struct {
	Message string  `json:"message" binding:"required"`
	Model   *string `json:"model,omitempty" binding:"omitempty,model_id"`
}

type RenameConversationRequest struct {
	Title string `json:"title" binding:"required"`
}

// ArchiveConversationRequest archives by default; send archived=false to restore.
type ArchiveConversationRequest struct {
	Archived *bool `json:"archived,omitempty"`
}

func (r ArchiveConversationRequest) Value() bool {
	return r.Archived == nil || *r.Archived
}

type SetTagsRequest struct {
	Tags []string `json:"tags" binding:"max=10,dive,max=32"`
}
