package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeScannerTXT creates TXT records for an eSCL scanner.
func EncodeScannerTXT(info *ScannerInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	txt[TXTKeyVersion] = "1"
	txt[TXTKeyModel] = info.Model
	txt[TXTKeyResourcePath] = info.ResourcePath

	if info.UUID != "" {
		txt[TXTKeyUUID] = info.UUID
	}
	if len(info.ColorSpaces) > 0 {
		txt[TXTKeyColorSpaces] = strings.Join(info.ColorSpaces, ",")
	}
	if len(info.Sources) > 0 {
		txt[TXTKeyInputSources] = strings.Join(info.Sources, ",")
	}
	if info.Duplex {
		txt[TXTKeyDuplex] = "T"
	} else {
		txt[TXTKeyDuplex] = "F"
	}
	if len(info.Formats) > 0 {
		txt[TXTKeyFormats] = strings.Join(info.Formats, ",")
	}
	if info.AdminURL != "" {
		txt[TXTKeyAdminURL] = info.AdminURL
	}
	if info.IconURL != "" {
		txt[TXTKeyRepresentation] = info.IconURL
	}
	if info.Note != "" {
		txt[TXTKeyNote] = info.Note
	}

	return txt
}

// DecodeScannerTXT parses TXT records from an eSCL announcement. Keys are
// matched case-insensitively.
func DecodeScannerTXT(txt TXTRecordMap) (*ScannerInfo, error) {
	txt = foldKeys(txt)
	info := &ScannerInfo{}

	var ok bool
	info.Model, ok = txt[strings.ToLower(TXTKeyModel)]
	if !ok || info.Model == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyModel)
	}

	info.ResourcePath = strings.Trim(txt[TXTKeyResourcePath], "/")
	if _, present := txt[TXTKeyResourcePath]; !present {
		info.ResourcePath = DefaultResourcePath
	}

	switch d := strings.ToUpper(txt[TXTKeyDuplex]); d {
	case "", "F", "FALSE":
	case "T", "TRUE":
		info.Duplex = true
	default:
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyDuplex, d)
	}

	info.UUID = txt[strings.ToLower(TXTKeyUUID)]
	info.ColorSpaces = parseList(txt[TXTKeyColorSpaces])
	info.Sources = parseList(txt[TXTKeyInputSources])
	info.Formats = parseList(txt[TXTKeyFormats])
	info.AdminURL = txt[TXTKeyAdminURL]
	info.IconURL = txt[TXTKeyRepresentation]
	info.Note = txt[TXTKeyNote]

	return info, nil
}

func foldKeys(txt TXTRecordMap) TXTRecordMap {
	out := make(TXTRecordMap, len(txt))
	for k, v := range txt {
		out[strings.ToLower(k)] = v
	}
	return out
}

// parseList splits a comma-separated value, dropping empty items and
// lower-casing the rest.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// TXTRecordsToStrings converts a TXTRecordMap to a slice of "key=value" strings,
// sorted by key.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
