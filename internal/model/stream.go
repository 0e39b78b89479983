package model

// StreamEventType 流式下发的事件类型
type StreamEventType string

const (
	StreamEventStart    StreamEventType = "start"
	StreamEventChunk    StreamEventType = "chunk"
	StreamEventComplete StreamEventType = "complete"
	StreamEventError    StreamEventType = "error"
)

// QuestionView 下发给前端的问题
type QuestionView struct {
	Key      string   `json:"key"`
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options,omitempty"`
	Required bool     `json:"required"`
}

// StreamEvent 一个事件；每种类型只序列化自己的字段，见 Payload
type StreamEvent struct {
	Type      StreamEventType
	SessionID string
	Question  *QuestionView
	IsResumed bool
	Content   string
	Completed bool
	Message   string
	Fallback  string
}

// Payload 返回与前端约定的 JSON 结构
func (e StreamEvent) Payload() interface{} {
	switch e.Type {
	case StreamEventStart:
		return struct {
			Type      StreamEventType `json:"type"`
			SessionID string          `json:"session_id"`
			Question  *QuestionView   `json:"question"`
			IsResumed bool            `json:"is_resumed,omitempty"`
		}{e.Type, e.SessionID, e.Question, e.IsResumed}
	case StreamEventChunk:
		return struct {
			Type    StreamEventType `json:"type"`
			Content string          `json:"content"`
		}{e.Type, e.Content}
	case StreamEventComplete:
		return struct {
			Type      StreamEventType `json:"type"`
			Question  *QuestionView   `json:"question"`
			Completed bool            `json:"completed"`
		}{e.Type, e.Question, e.Completed}
	default:
		return struct {
			Type     StreamEventType `json:"type"`
			Message  string          `json:"message"`
			Fallback string          `json:"fallback,omitempty"`
		}{StreamEventError, e.Message, e.Fallback}
	}
}
