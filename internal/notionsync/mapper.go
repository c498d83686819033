package notionsync

import (
	"time"

	"github.com/dvloznov/subtrack/internal/infra/bigquery"
	"github.com/jomei/notionapi"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{
			Start: &d,
		},
	}
}

// RecurrenceResultToNotionProperties converts a stored recurrence result to
// Notion properties for the Detected Subscriptions database. Result ID is the
// title property; the sync uses it to match pages to rows.
func RecurrenceResultToNotionProperties(row *bigquery.RecurrenceResultRow) notionapi.Properties {
	props := notionapi.Properties{
		"Result ID": notionapi.TitleProperty{
			Title: richText(row.ResultID),
		},
		"Date": dateProperty(row.Date.In(time.UTC)),
		"Amount": notionapi.NumberProperty{
			Number: row.Amount,
		},
		"Recurring": notionapi.CheckboxProperty{
			Checkbox: row.IsRecurring,
		},
	}

	if row.Description != "" {
		props["Description"] = notionapi.RichTextProperty{
			RichText: richText(row.Description),
		}
	}

	if row.Merchant != "" {
		props["Merchant"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: row.Merchant,
			},
		}
	}

	if row.Pattern != "" {
		props["Pattern"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: row.Pattern,
			},
		}
	}

	if row.IntervalDays.Valid {
		props["Interval Days"] = notionapi.NumberProperty{
			Number: float64(row.IntervalDays.Int64),
		}
	}

	if row.IsNewSubscription != "" {
		props["New Subscription"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: row.IsNewSubscription,
			},
		}
	}

	if row.PredictedCategory != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: row.PredictedCategory,
			},
		}
	}

	if row.MerchantInfo != "" {
		props["Merchant Info"] = notionapi.RichTextProperty{
			RichText: richText(row.MerchantInfo),
		}
	}

	return props
}

// SubscriptionToNotionProperties converts a validated subscription to Notion
// properties for the Subscriptions database.
func SubscriptionToNotionProperties(row *bigquery.ValidatedSubscriptionRow) notionapi.Properties {
	props := notionapi.Properties{
		"Subscription ID": notionapi.TitleProperty{
			Title: richText(row.SubscriptionID),
		},
	}

	if row.Merchant != "" {
		props["Merchant"] = notionapi.RichTextProperty{
			RichText: richText(row.Merchant),
		}
	}

	if row.Description != "" {
		props["Description"] = notionapi.RichTextProperty{
			RichText: richText(row.Description),
		}
	}

	if row.Category != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: row.Category,
			},
		}
	}

	if row.Status != "" {
		props["Status"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: row.Status,
			},
		}
	}

	return props
}

// extractResultID extracts the result ID from a Notion page's properties.
// Returns empty string if not found.
func extractResultID(page notionapi.Page) string {
	if prop, ok := page.Properties["Result ID"]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}

// extractSubscriptionID extracts the subscription ID from a Notion page's
// properties. Returns empty string if not found.
func extractSubscriptionID(page notionapi.Page) string {
	if prop, ok := page.Properties["Subscription ID"]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
