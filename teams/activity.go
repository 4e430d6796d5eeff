package teams

// Activity is the subset of a Bot Framework activity this bot consumes.
type Activity struct {
	Type string         `json:"type"`
	Text string         `json:"text"`
	From ChannelAccount `json:"from"`
}

// ChannelAccount identifies a Teams user or bot on an activity.
type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OutgoingRequest is the payload of a Teams outgoing-webhook call. Depending
// on tenant configuration the sender arrives as "from" or "user".
type OutgoingRequest struct {
	Text string         `json:"text"`
	From ChannelAccount `json:"from"`
	User ChannelAccount `json:"user"`
}

// SenderID resolves the Teams user id from either field, defaulting to
// "unknown" so unauthenticated users still get a login prompt.
func (r *OutgoingRequest) SenderID() string {
	if r.From.ID != "" {
		return r.From.ID
	}
	if r.User.ID != "" {
		return r.User.ID
	}
	return "unknown"
}
