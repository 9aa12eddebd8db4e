package service

// defaultDisposableDomains is the built-in throwaway mailbox list. Operators
// extend it through DISPOSABLE_DOMAINS.
var defaultDisposableDomains = []string{
	"10minutemail.com",
	"20minutemail.com",
	"33mail.com",
	"dispostable.com",
	"emailondeck.com",
	"fakeinbox.com",
	"getairmail.com",
	"getnada.com",
	"guerrillamail.com",
	"guerrillamail.net",
	"guerrillamail.org",
	"mailcatch.com",
	"maildrop.cc",
	"mailinator.com",
	"mailnesia.com",
	"mintemail.com",
	"mohmal.com",
	"mytemp.email",
	"sharklasers.com",
	"spamgourmet.com",
	"temp-mail.org",
	"tempail.com",
	"tempmail.com",
	"tempmailo.com",
	"tempr.email",
	"throwawaymail.com",
	"trashmail.com",
	"yopmail.com",
}
