package whatsapp

// Chat addresses a conversation between a business phone number (the
// Cloud API phone number id) and a customer's WhatsApp number.
type Chat struct {
	BusinessNumber string
	CustomerNumber string
}

// UID implements job.Target.
func (c Chat) UID() string { return "whatsapp:" + c.BusinessNumber + ":" + c.CustomerNumber }

// Key returns the ordering key of the conversation.
func (c Chat) Key() string { return "whatsapp." + c.BusinessNumber + "." + c.CustomerNumber }
