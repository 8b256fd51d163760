package cfg

type ConfigOptions struct {
	TopicConfigOptions
	ServerConfigOptions
}

type TopicConfigOptions struct {
	RPCTopic      string
	ResponseTopic string
	EventTopic    string
	Qos           uint
	Retained      bool
}

type ServerConfigOptions struct {
	Host string
	Port int
	Path string
}
