package messenger

// Wire types for the Instagram Messaging API. Only the fields the adapter
// reads are modeled.

// ---------------------------------------------------------------------------
// Inbound webhook payload
// ---------------------------------------------------------------------------

// instagramWebhookPayload is the envelope of an inbound webhook delivery.
// Instagram delivers DM events as messaging entries, not field changes.
type instagramWebhookPayload struct {
	Object string                  `json:"object"`
	Entry  []instagramWebhookEntry `json:"entry"`
}

type instagramWebhookEntry struct {
	ID        string                    `json:"id"`
	Time      int64                     `json:"time"`
	Messaging []instagramMessagingEvent `json:"messaging"`
}

type instagramMessagingEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Timestamp int64                    `json:"timestamp"`
	Message   *instagramInboundMessage `json:"message,omitempty"`
}

type instagramInboundMessage struct {
	MID         string                `json:"mid"`
	Text        string                `json:"text"`
	IsEcho      bool                  `json:"is_echo"`
	Attachments []instagramAttachment `json:"attachments,omitempty"`
	ReplyTo     *struct {
		MID string `json:"mid"`
	} `json:"reply_to,omitempty"`
}

type instagramAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

// ---------------------------------------------------------------------------
// Outbound send
// ---------------------------------------------------------------------------

type instagramSendRequest struct {
	Recipient instagramSendRecipient `json:"recipient"`
	Message   instagramSendMessage   `json:"message"`
}

type instagramSendRecipient struct {
	ID string `json:"id"`
}

type instagramSendMessage struct {
	Text       string                   `json:"text,omitempty"`
	Attachment *instagramSendAttachment `json:"attachment,omitempty"`
}

type instagramSendAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

type instagramSendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

// ---------------------------------------------------------------------------
// Conversation history
// ---------------------------------------------------------------------------

// instagramConversationsResponse is one page of the conversation history pull
type instagramConversationsResponse struct {
	Data   []instagramConversation `json:"data"`
	Paging instagramPaging         `json:"paging"`
}

type instagramConversation struct {
	ID       string `json:"id"`
	Messages struct {
		Data []instagramHistoryMessage `json:"data"`
	} `json:"messages"`
}

type instagramHistoryMessage struct {
	ID   string `json:"id"`
	From struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"from"`
	To struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	} `json:"to"`
	Message     string `json:"message"`
	CreatedTime string `json:"created_time"`
}

type instagramPaging struct {
	Cursors struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"cursors"`
	Next string `json:"next"`
}

// ---------------------------------------------------------------------------
// Account API responses
// ---------------------------------------------------------------------------

type instagramProfileResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type instagramSubscriptionsResponse struct {
	Data []struct {
		Object string   `json:"object"`
		Fields []string `json:"fields"`
	} `json:"data"`
}

type instagramRefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
