package enum

type AuthKind string

const (
	AuthPassword AuthKind = "password"
	AuthOAuth2   AuthKind = "oauth2"
)

func (t AuthKind) String() string {
	return string(t)
}

type EmailProvider string

const (
	EmailGmail   EmailProvider = "gmail"
	EmailOutlook EmailProvider = "outlook"
	EmailYahoo   EmailProvider = "yahoo"
	EmailGeneric EmailProvider = "generic"
)

func (t EmailProvider) String() string {
	return string(t)
}

type EmailSecurity string

const (
	EmailSecurityNone     EmailSecurity = "none"
	EmailSecuritySSL      EmailSecurity = "ssl"
	EmailSecurityTLS      EmailSecurity = "tls"
	EmailSecurityStartTLS EmailSecurity = "startTLS"
)

func (t EmailSecurity) String() string {
	return string(t)
}

type WatcherState string

const (
	WatcherConnecting WatcherState = "connecting"
	WatcherWatching   WatcherState = "watching"
	WatcherStopped    WatcherState = "stopped"
)

func (t WatcherState) String() string {
	return string(t)
}
