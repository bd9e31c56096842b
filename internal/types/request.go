package types

type RequestQR struct {
	Output string
}

type RequestSessionStart struct {
	Reset bool
}

type RequestRelay struct {
	Text string `json:"text"`
}
