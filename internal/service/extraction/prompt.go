package extraction

// systemInstruction carries the parsing rules for Greek availability phrases.
const systemInstruction = `You extract structured opening rules for automated external defibrillators (AEDs).
Each user message is one Greek free-text description of when an AED can be used.
Answer with a single JSON object that follows the response schema. Do not add commentary.

status
- "parsed": concrete days and/or hours can be extracted.
- "uncertain": availability is vague or conditional (for example "by phone", "during games", "on request").
- "closed_for_use": the device is for private or staff use only (for example "for the rescue team only").

is_24_7
- true only when the text states round-the-clock availability ("24/7", "όλο το 24ωρο", "24ωρη λειτουργία") and nothing restricts it.
- When true, rules may be empty.

uncertain_reason
- Only when status is "uncertain": a short English explanation, e.g. "During games/events".

rules[].days (Monday = 1 ... Sunday = 7)
- "Δευτέρα" 1, "Τρίτη" 2, "Τετάρτη" 3, "Πέμπτη" 4, "Παρασκευή" 5, "Σάββατο" 6, "Κυριακή" 7.
- "Καθημερινά" (every day) = [1,2,3,4,5,6,7].
- "Δευτέρα - Παρασκευή" / "εργάσιμες" (weekdays) = [1,2,3,4,5].
- "Σαββατοκύριακο" (weekend) = [6,7].

rules[].open_time / rules[].close_time
- Strict 24-hour "HH:mm" with leading zeros: 9:30 -> "09:30".
- "π.μ." is before noon, "μ.μ." is after noon: 4:00 μ.μ. -> "16:00", 12:00 μ.μ. -> "12:00".
- Overnight ranges keep their order: "20:00 - 04:00" -> open "20:00", close "04:00".
- A whole day is open "00:00", close "24:00".

rules[].start_month / end_month / start_day / end_day
- Months are 1-12, days of month 1-31. Omit them when the text has no seasonal limit.
- Ranges crossing the new year keep their order: "Οκτώβριο έως Μάιο" -> start_month 10, end_month 5.
- "σχολικούς μήνες" (school months) -> start_month 9, end_month 6.

original_text
- Copy the input text exactly.`

// responseSchema constrains the model output to the Availability shape.
var responseSchema = map[string]interface{}{
	"type": "OBJECT",
	"properties": map[string]interface{}{
		"original_text": map[string]interface{}{"type": "STRING"},
		"status": map[string]interface{}{
			"type": "STRING",
			"enum": []string{"parsed", "uncertain", "closed_for_use"},
		},
		"is_24_7":          map[string]interface{}{"type": "BOOLEAN"},
		"uncertain_reason": map[string]interface{}{"type": "STRING"},
		"rules": map[string]interface{}{
			"type": "ARRAY",
			"items": map[string]interface{}{
				"type": "OBJECT",
				"properties": map[string]interface{}{
					"days": map[string]interface{}{
						"type":  "ARRAY",
						"items": map[string]interface{}{"type": "INTEGER"},
					},
					"start_month": map[string]interface{}{"type": "INTEGER"},
					"start_day":   map[string]interface{}{"type": "INTEGER"},
					"end_month":   map[string]interface{}{"type": "INTEGER"},
					"end_day":     map[string]interface{}{"type": "INTEGER"},
					"open_time":   map[string]interface{}{"type": "STRING"},
					"close_time":  map[string]interface{}{"type": "STRING"},
				},
				"propertyOrdering": []string{
					"days", "start_month", "start_day", "end_month", "end_day", "open_time", "close_time",
				},
			},
		},
	},
	"required":         []string{"original_text", "status", "is_24_7", "rules"},
	"propertyOrdering": []string{"original_text", "status", "is_24_7", "uncertain_reason", "rules"},
}
