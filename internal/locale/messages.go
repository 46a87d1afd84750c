// Package locale renders billing error kinds in the portal's languages.
package locale

import (
	"strconv"
	"time"

	"water-bill-portal/internal/billing"

	"golang.org/x/text/language"
)

var (
	Marathi = language.Marathi
	Hindi   = language.Hindi
	English = language.English
)

// Default is the portal's default language.
var Default = Marathi

var matcher = language.NewMatcher([]language.Tag{Marathi, Hindi, English})

var (
	mr = language.MustParseBase("mr")
	hi = language.MustParseBase("hi")
	en = language.MustParseBase("en")
)

var messages = map[billing.ErrorKind]map[language.Base]string{
	billing.NotANumber: {
		mr: "वैध रक्कम प्रविष्ट करा",
		hi: "मान्य राशि दर्ज करें",
		en: "Enter valid amount",
	},
	billing.ExceedsTotal: {
		mr: "रक्कम एकूण देय रकमेपेक्षा जास्त असू शकत नाही",
		hi: "राशि कुल देय से अधिक नहीं हो सकती",
		en: "Amount cannot exceed total payable",
	},
	billing.NotPositive: {
		mr: "रक्कम 0 पेक्षा जास्त असणे आवश्यक आहे",
		hi: "राशि 0 से अधिक होनी चाहिए",
		en: "Amount must be greater than 0",
	},
	billing.InvalidSubmission: {
		mr: "कृपया भरण्यासाठी वैध रक्कम निवडा",
		hi: "कृपया भुगतान के लिए मान्य राशि चुनें",
		en: "Select a valid amount before paying",
	},
	billing.PaymentFailure: {
		mr: "पेमेंट अयशस्वी झाले, कृपया पुन्हा प्रयत्न करा",
		hi: "भुगतान विफल रहा, कृपया पुनः प्रयास करें",
		en: "Payment failed, please try again",
	},
	billing.PaymentTimeout: {
		mr: "पेमेंटला वेळ लागला, कृपया पुन्हा प्रयत्न करा",
		hi: "भुगतान का समय समाप्त हुआ, कृपया पुनः प्रयास करें",
		en: "Payment timed out, please try again",
	},
	billing.InvalidMobile: {
		mr: "कृपया वैध 10 अंकी मोबाइल नंबर प्रविष्ट करा",
		hi: "कृपया मान्य 10 अंकों का मोबाइल नंबर दर्ज करें",
		en: "Please enter a valid 10-digit mobile number",
	},
	billing.InvalidEmail: {
		mr: "कृपया वैध ईमेल पत्ता प्रविष्ट करा",
		hi: "कृपया मान्य ईमेल पता दर्ज करें",
		en: "Please enter a valid email address",
	},
	billing.TermsNotAccepted: {
		mr: "कृपया अटी व शर्ती स्वीकारा",
		hi: "कृपया नियम और शर्तें स्वीकार करें",
		en: "Please accept terms and conditions",
	},
	billing.DataIntegrityViolation: {
		mr: "बिल तपशील जुळत नाहीत, कृपया कार्यालयाशी संपर्क साधा",
		hi: "बिल विवरण मेल नहीं खाते, कृपया कार्यालय से संपर्क करें",
		en: "Bill details are inconsistent, please contact the office",
	},
}

// Negotiate picks a supported language from an explicit choice such as
// "hi" and, failing that, an Accept-Language header.
func Negotiate(choice, acceptLanguage string) language.Tag {
	if choice != "" {
		if tag, err := language.Parse(choice); err == nil {
			if matched, _, confidence := matcher.Match(tag); confidence >= language.High {
				return base(matched)
			}
		}
	}

	if acceptLanguage != "" {
		tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil && len(tags) > 0 {
			if matched, _, confidence := matcher.Match(tags...); confidence != language.No {
				return base(matched)
			}
		}
	}

	return Default
}

// base strips the -u-rg extension the matcher may add to the tag.
func base(tag language.Tag) language.Tag {
	b, _ := tag.Base()
	t, err := language.Compose(b)
	if err != nil {
		return Default
	}
	return t
}

// Message returns the text for kind, or "" for billing.NoError.
func Message(kind billing.ErrorKind, tag language.Tag) string {
	texts, ok := messages[kind]
	if !ok {
		return string(kind)
	}
	b, _ := tag.Base()
	if text, ok := texts[b]; ok {
		return text
	}
	return texts[en]
}

var months = map[language.Base][12]string{
	mr: {"जानेवारी", "फेब्रुवारी", "मार्च", "एप्रिल", "मे", "जून", "जुलै", "ऑगस्ट", "सप्टेंबर", "ऑक्टोबर", "नोव्हेंबर", "डिसेंबर"},
	hi: {"जनवरी", "फ़रवरी", "मार्च", "अप्रैल", "मई", "जून", "जुलाई", "अगस्त", "सितंबर", "अक्टूबर", "नवंबर", "दिसंबर"},
}

// BillMonth labels a billing period such as "नोव्हेंबर 2024".
func BillMonth(period time.Time, tag language.Tag) string {
	b, _ := tag.Base()
	name := period.Month().String()
	if names, ok := months[b]; ok {
		name = names[period.Month()-1]
	}
	return name + " " + strconv.Itoa(period.Year())
}
