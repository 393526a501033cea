package entity

import "strings"

// NormalizePhone converts a Kenyan mobile number to the 2547XXXXXXXX / 2541XXXXXXXX form the
// payment provider expects. Accepted inputs are 07.., 01.., 7.., 1.., 254.. and +254.., with
// spaces or dashes anywhere.
func NormalizePhone(raw string) (string, error) {
	phone := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	phone = strings.TrimPrefix(phone, "+")

	switch {
	case strings.HasPrefix(phone, "254"):
	case strings.HasPrefix(phone, "0"):
		phone = "254" + phone[1:]
	default:
		phone = "254" + phone
	}

	if len(phone) != 12 {
		return "", NewValidationError("phone_number", "must be a valid Kenyan mobile number")
	}
	if phone[3] != '7' && phone[3] != '1' {
		return "", NewValidationError("phone_number", "must be a valid Kenyan mobile number")
	}
	for _, c := range phone {
		if c < '0' || c > '9' {
			return "", NewValidationError("phone_number", "must contain digits only")
		}
	}

	return phone, nil
}
