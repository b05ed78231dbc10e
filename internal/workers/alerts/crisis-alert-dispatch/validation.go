package crisisalertdispatch

import "crisis-alerts/internal/common/validation"

func recipientsProperty(description string) validation.Property {
	return validation.Property{
		Type:        "object",
		Description: description,
		Properties: map[string]validation.Property{
			"authorities": {Type: "boolean"},
			"ngos":        {Type: "boolean"},
			"media":       {Type: "boolean"},
		},
	}
}

// GetInputSchema describes the job variables. Process variables outside the
// request are allowed since Zeebe hands the whole scope to the worker.
func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"email", "subject", "message"},
		Properties: map[string]validation.Property{
			"email": {
				Type:        "string",
				Description: "Primary recipient address",
				MinLength:   validation.IntPtr(3),
				MaxLength:   validation.IntPtr(254),
			},
			"subject": {
				Type:        "string",
				Description: "Email subject",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(998),
			},
			"message": {
				Type:        "string",
				Description: "Alert body, used for email and SMS",
				MinLength:   validation.IntPtr(1),
			},
			"recipients": recipientsProperty("Email recipient categories"),
			"crisisType": {
				Type:        "string",
				Description: "Crisis classification",
				Enum:        []string{"drought", "economic", "political", "social", "other", "check"},
			},
			"regionName": {
				Type:        "string",
				Description: "Affected region",
			},
			"severity": {
				Type:        "string",
				Description: "Crisis severity",
				Enum:        []string{"low", "medium", "high", "extreme"},
			},
			"sendSms": {
				Type:        "boolean",
				Description: "Whether to send SMS",
			},
			"phoneNumbers": {
				Type:        "array",
				Description: "E.164 phone numbers",
				MaxItems:    validation.IntPtr(100),
				Items: &validation.Property{
					Type:    "string",
					Pattern: validation.StringPtr(validation.PhonePattern),
				},
			},
			"smsRecipients": recipientsProperty("SMS recipient categories"),
		},
		AdditionalProperties: true,
	}
}
