package dispatcher

import (
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"autoplant/internal/model"
)

// HandleCommand processes one remote command message. It matches the
// iotmqtt consumer handler signature and never returns an error for bad
// input: a broken payload must not take the subscription down.
func (s *Service) HandleCommand(topic string, message mqtt.Message) error {
	payload := message.Payload()
	if len(payload) == 0 {
		return nil
	}
	if s.deduper.SeenPayload(payload) {
		commands.WithLabelValues("duplicate").Inc()
		return nil
	}

	var cmd model.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		commands.WithLabelValues("invalid").Inc()
		s.log.Warnw("bad command payload", "topic", topic, "payload", string(payload), "err", err)
		return nil
	}

	d, err := cmd.Device()
	if err != nil {
		commands.WithLabelValues("invalid").Inc()
		s.log.Warnw("unknown command from server", "topic", topic, "command", cmd.Command)
		return nil
	}
	duration := cmd.Duration.Duration()
	if duration <= 0 {
		commands.WithLabelValues("invalid").Inc()
		s.log.Warnw("command without a usable duration", "command", cmd.Command)
		return nil
	}

	commands.WithLabelValues("accepted").Inc()
	s.log.Infow("remote command", "device", d, "duration", duration)
	s.launch(d, duration, model.SourceCommand)
	return nil
}
