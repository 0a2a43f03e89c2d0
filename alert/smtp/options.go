package smtp

type Option func(*options)

type options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func WithHost(host string) Option {
	return func(o *options) {
		o.Host = host
	}
}

func WithPort(port int) Option {
	return func(o *options) {
		o.Port = port
	}
}

func WithUsername(username string) Option {
	return func(o *options) {
		o.Username = username
	}
}

func WithPassword(password string) Option {
	return func(o *options) {
		o.Password = password
	}
}

// WithFrom 发件人，默认同 Username
func WithFrom(from string) Option {
	return func(o *options) {
		o.From = from
	}
}
