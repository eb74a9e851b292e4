package messenger

// Wire types for the WhatsApp Business Cloud API. Only the fields the
// adapter reads are modeled; unknown fields are ignored by the decoder.

// ---------------------------------------------------------------------------
// Inbound webhook payload
// ---------------------------------------------------------------------------

// whatsAppWebhookPayload is the envelope of an inbound webhook delivery.
// One delivery may carry multiple entries, each with multiple changes.
type whatsAppWebhookPayload struct {
	Object string                 `json:"object"`
	Entry  []whatsAppWebhookEntry `json:"entry"`
}

type whatsAppWebhookEntry struct {
	ID      string                  `json:"id"`
	Changes []whatsAppWebhookChange `json:"changes"`
}

type whatsAppWebhookChange struct {
	Field string               `json:"field"`
	Value whatsAppWebhookValue `json:"value"`
}

type whatsAppWebhookValue struct {
	MessagingProduct string                   `json:"messaging_product"`
	Metadata         whatsAppWebhookMetadata  `json:"metadata"`
	Contacts         []whatsAppWebhookContact `json:"contacts"`
	Messages         []whatsAppInboundMessage `json:"messages"`
	Statuses         []whatsAppDeliveryStatus `json:"statuses"`
}

type whatsAppWebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type whatsAppWebhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type whatsAppInboundMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`

	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Image    *whatsAppMedia `json:"image,omitempty"`
	Video    *whatsAppMedia `json:"video,omitempty"`
	Audio    *whatsAppMedia `json:"audio,omitempty"`
	Document *whatsAppMedia `json:"document,omitempty"`
	Sticker  *whatsAppMedia `json:"sticker,omitempty"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Address   string  `json:"address"`
	} `json:"location,omitempty"`
	Contacts []struct {
		Name struct {
			FormattedName string `json:"formatted_name"`
		} `json:"name"`
	} `json:"contacts,omitempty"`
	Context *struct {
		ID string `json:"id"`
	} `json:"context,omitempty"`
}

type whatsAppMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
}

// whatsAppDeliveryStatus is a sent-message status update; ingested webhooks
// carrying only statuses parse to an empty message list.
type whatsAppDeliveryStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
	Timestamp   string `json:"timestamp"`
}

// ---------------------------------------------------------------------------
// Outbound send
// ---------------------------------------------------------------------------

type whatsAppSendRequest struct {
	MessagingProduct string               `json:"messaging_product"`
	RecipientType    string               `json:"recipient_type"`
	To               string               `json:"to"`
	Type             string               `json:"type"`
	Text             *whatsAppSendText    `json:"text,omitempty"`
	Image            *whatsAppSendMedia   `json:"image,omitempty"`
	Document         *whatsAppSendMedia   `json:"document,omitempty"`
	Context          *whatsAppSendContext `json:"context,omitempty"`
}

type whatsAppSendText struct {
	Body string `json:"body"`
}

type whatsAppSendMedia struct {
	ID      string `json:"id,omitempty"`
	Link    string `json:"link,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type whatsAppSendContext struct {
	MessageID string `json:"message_id"`
}

type whatsAppSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// ---------------------------------------------------------------------------
// Account API responses
// ---------------------------------------------------------------------------

type whatsAppPhoneNumbersResponse struct {
	Data []struct {
		ID                 string `json:"id"`
		DisplayPhoneNumber string `json:"display_phone_number"`
		VerifiedName       string `json:"verified_name"`
	} `json:"data"`
}

type whatsAppSubscribedAppsResponse struct {
	Data []struct {
		WhatsAppBusinessAPIData struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"whatsapp_business_api_data"`
	} `json:"data"`
}

type whatsAppTokenExchangeResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
