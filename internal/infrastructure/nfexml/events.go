package nfexml

import (
	"log/slog"

	"github.com/beevik/etree"

	"github.com/rcarvalho/nfebatch/internal/core/domain"
	"github.com/rcarvalho/nfebatch/internal/core/ports"
)

// Cancellation event type from the fiscal event registry.
const eventTypeCancellation = "110111"

// EventCollector derives the cancelled-key set from the event documents of
// an input tree. Unreadable or unparsable event files are logged and skipped:
// a missing cancellation only leaves a document labeled authorized.
type EventCollector struct {
	source ports.DocumentSource
	log    *slog.Logger
}

func NewEventCollector(source ports.DocumentSource, log *slog.Logger) *EventCollector {
	return &EventCollector{source: source, log: log}
}

func (c *EventCollector) Collect(root string) (domain.KeySet, error) {
	paths, err := c.source.ListEvents(root)
	if err != nil {
		return nil, err
	}

	keys := domain.NewKeySet()
	for _, path := range paths {
		content, err := c.source.Read(path)
		if err != nil {
			c.log.Warn("skipping unreadable event file", "path", path, "error", err)
			continue
		}
		for _, key := range ExtractCancelledKeys(content) {
			keys.Add(key)
		}
	}
	return keys, nil
}

// ExtractCancelledKeys returns the access keys of every cancellation event
// in one event document. Non-event XML yields an empty slice.
func ExtractCancelledKeys(content []byte) []string {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil
	}

	var keys []string
	walkElements(doc.Root(), func(e *etree.Element) {
		if e.Tag != "infEvento" {
			return
		}
		if leafText(e, "tpEvento") != eventTypeCancellation {
			return
		}
		if key := leafText(e, "chNFe"); key != "" {
			keys = append(keys, key)
		}
	})
	return keys
}

func walkElements(e *etree.Element, visit func(*etree.Element)) {
	if e == nil {
		return
	}
	visit(e)
	for _, c := range e.ChildElements() {
		walkElements(c, visit)
	}
}
