package bot

import (
	"fmt"
	"strconv"
	"strings"

	"reelpress/internal/batch"
	"reelpress/internal/model"
)

// BatchArgs holds the parsed arguments of a /batch command.
type BatchArgs struct {
	SourceIDs []int64
	Kind      model.Kind
	Platform  string
}

// ParseBatchArgs parses arguments for /batch.
// Format: <id> [id...] [-k movie|series|auto] <platform...>
// IDs may also be comma separated.
func ParseBatchArgs(args string) (BatchArgs, error) {
	parts := strings.Fields(strings.ReplaceAll(args, ",", " "))
	if len(parts) < 2 {
		return BatchArgs{}, fmt.Errorf("usage: /batch <ids...> [-k movie|series|auto] <platform>")
	}

	var out BatchArgs
	rest := parts
	for len(rest) > 0 {
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			break
		}
		if id <= 0 {
			return BatchArgs{}, fmt.Errorf("invalid source ID %q", rest[0])
		}
		out.SourceIDs = append(out.SourceIDs, id)
		rest = rest[1:]
	}
	if len(out.SourceIDs) == 0 {
		return BatchArgs{}, fmt.Errorf("at least one numeric source ID is required")
	}
	if len(out.SourceIDs) > batch.MaxItems {
		return BatchArgs{}, fmt.Errorf("at most %d source IDs per batch", batch.MaxItems)
	}

	kind, rest, err := parseKindFlag(rest)
	if err != nil {
		return BatchArgs{}, err
	}
	out.Kind = kind

	if len(rest) == 0 {
		return BatchArgs{}, fmt.Errorf("platform is required, e.g. /batch 603 Netflix")
	}
	out.Platform = strings.Join(rest, " ")
	return out, nil
}

// ParseItemArgs parses arguments for /item: <source_id> [-k kind].
func ParseItemArgs(args string) (int64, model.Kind, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return 0, "", fmt.Errorf("usage: /item <source_id> [-k movie|series]")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid source ID %q", parts[0])
	}
	kind, rest, err := parseKindFlag(parts[1:])
	if err != nil {
		return 0, "", err
	}
	if len(rest) > 0 {
		return 0, "", fmt.Errorf("unexpected argument %q", rest[0])
	}
	return id, kind, nil
}

func parseKindFlag(parts []string) (model.Kind, []string, error) {
	if len(parts) == 0 || parts[0] != "-k" {
		return model.KindAuto, parts, nil
	}
	if len(parts) < 2 {
		return "", nil, fmt.Errorf("-k needs a value: movie, series, auto")
	}
	kind, ok := model.ParseKind(parts[1])
	if !ok {
		return "", nil, fmt.Errorf("invalid kind %q, use: movie, series, auto", parts[1])
	}
	return kind, parts[2:], nil
}

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("ID is required")
	}
	id, err := strconv.ParseInt(strings.Fields(s)[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}

// ParseToken returns the first word of args.
func ParseToken(args string) string {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
