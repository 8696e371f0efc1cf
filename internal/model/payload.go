package model

// Payload is a tagged variant for one outbound send request. The kind is
// decided once, when the job is built, and is never re-inferred downstream.
type Payload struct {
	Kind PayloadKind

	// PayloadText
	Text string

	// PayloadMediaRef: a media URL still to be fetched by the pipeline.
	MediaURL string

	// PayloadMedia: a fetched binary attachment.
	Media    []byte
	MimeType string

	// PayloadProductBatch
	Products []ProductItem
}

// ProductItem is one entry of an ordered product catalog: a text portion
// followed by zero or more media references, delivered in list order.
type ProductItem struct {
	Text      string   `json:"text"`
	MediaURLs []string `json:"media,omitempty"`
}

func TextPayload(body string) Payload {
	return Payload{Kind: PayloadText, Text: body}
}

func MediaRefPayload(url string) Payload {
	return Payload{Kind: PayloadMediaRef, MediaURL: url}
}

func MediaPayload(data []byte, mimeType string) Payload {
	return Payload{Kind: PayloadMedia, Media: data, MimeType: mimeType}
}

func ProductBatchPayload(items []ProductItem) Payload {
	return Payload{Kind: PayloadProductBatch, Products: items}
}

// DeliveryResult summarizes one delivery job. Partial success is always
// visible to the caller: a unit that fell back to text is counted in
// FallbacksUsed and ItemsSent, never hidden as a silent failure.
type DeliveryResult struct {
	ItemsSent     int `json:"itemsSent"`
	ItemsFailed   int `json:"itemsFailed"`
	FallbacksUsed int `json:"fallbacksUsed"`
}
