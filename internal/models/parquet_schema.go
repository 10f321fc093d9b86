package models

// ParquetRequestRecord defines the schema for exporting request records using
// parquet-go/parquet-go. Optional fields use pointers with the ',optional'
// tag; timestamps are stored as unix milliseconds.
type ParquetRequestRecord struct {
	ID            string  `parquet:"id"`
	Timestamp     int64   `parquet:"timestamp"`
	URL           string  `parquet:"url"`
	Method        string  `parquet:"method"`
	Domain        string  `parquet:"domain"`
	ResourceType  *string `parquet:"resource_type,optional"`
	Initiator     *string `parquet:"initiator,optional"`
	InitiatorType string  `parquet:"initiator_type"`
	ExtensionID   *string `parquet:"extension_id,optional"`
	ExtensionName *string `parquet:"extension_name,optional"`
	TabID         int32   `parquet:"tab_id"`
	FrameID       int32   `parquet:"frame_id"`
	DetectedBy    string  `parquet:"detected_by"`
}

// ToParquetRecord converts a NetworkRequestRecord into its parquet form.
func (r *NetworkRequestRecord) ToParquetRecord() ParquetRequestRecord {
	pr := ParquetRequestRecord{
		ID:            r.ID,
		Timestamp:     r.Timestamp.UnixMilli(),
		URL:           r.URL,
		Method:        r.Method,
		Domain:        r.Domain,
		InitiatorType: string(r.InitiatorType),
		TabID:         int32(r.TabID),
		FrameID:       int32(r.FrameID),
		DetectedBy:    string(r.DetectedBy),
	}
	if r.ResourceType != "" {
		pr.ResourceType = &r.ResourceType
	}
	if r.Initiator != "" {
		pr.Initiator = &r.Initiator
	}
	if r.ExtensionID != "" {
		pr.ExtensionID = &r.ExtensionID
	}
	if r.ExtensionName != "" {
		pr.ExtensionName = &r.ExtensionName
	}
	return pr
}
