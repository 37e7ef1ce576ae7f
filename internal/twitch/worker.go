package twitch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/kottz/kolmodin-go/internal/twitch/ircmsg"
)

const (
	ircAddr             = "irc.chat.twitch.tv:6667"
	dialTimeout         = 15 * time.Second
	authReadTimeout     = 15 * time.Second
	steadyReadTimeout   = 5 * time.Second
	silenceDeadTimeout  = 4 * time.Minute
	idlePingInterval    = 60 * time.Second
	pingReplyTimeout    = 15 * time.Second
	rateWindow          = 30 * time.Second
	rateCheckInterval   = 10 * time.Second
	rateShortWindow     = 10 * time.Second
	rateTriggerCooldown = 15 * time.Second
	maxReconnectBackoff = 300 * time.Second
)

var authFailurePhrases = []string{
	"Login authentication failed",
	"Improperly formatted auth",
	"Invalid NICK",
}

// workerCallbacks lets the worker report back to its owning Channel Agent
// without holding a reference to it: the agent hands the worker a clone
// of its own input-queue writer instead.
type workerCallbacks struct {
	reportStatus func(Status)
	reportLine   func(string)
}

// runConnectionWorker owns one TCP connection's worth of attempts for
// channel's lifetime. It returns when ctx is cancelled (clean shutdown) or
// after emitting a terminal Disconnected status on the 3rd consecutive
// auth failure.
func runConnectionWorker(ctx context.Context, channel string, tp *TokenProvider, cb workerCallbacks) {
	reconnectAttempts := 0
	consecutiveAuthFailures := 0

	for {
		if ctx.Err() != nil {
			return
		}

		reconnectAttempts++
		cb.reportStatus(Connecting(reconnectAttempts))

		err, authFailure := attemptConnection(ctx, channel, tp, cb, reconnectAttempts)

		if ctx.Err() != nil {
			return
		}

		if err == nil {
			// Clean exit: RECONNECT from the server, or a planned handover.
			reconnectAttempts = 0
			consecutiveAuthFailures = 0
			continue
		}

		if authFailure {
			consecutiveAuthFailures++
			tp.SignalImmediateRefresh()

			if consecutiveAuthFailures >= 3 {
				cb.reportStatus(Disconnected("Persistent Auth Failure"))
				return
			}

			delay := authRetryDelay(consecutiveAuthFailures)
			cb.reportStatus(Reconnecting(err.Error(), reconnectAttempts, delay))
			if !sleepOrDone(ctx, delay) {
				return
			}
			continue
		}

		consecutiveAuthFailures = 0
		backoff := reconnectBackoff(reconnectAttempts)
		cb.reportStatus(Reconnecting(err.Error(), reconnectAttempts, backoff))
		if !sleepOrDone(ctx, backoff) {
			return
		}
	}
}

// attemptConnection runs one full connect-authenticate-join-steady-state
// cycle. Returns (nil, false) on a clean exit that should retry
// immediately (RECONNECT, or ctx cancellation), (err, true) on a terminal
// auth failure for this attempt, and (err, false) on any other failure.
func attemptConnection(ctx context.Context, channel string, tp *TokenProvider, cb workerCallbacks, attempt int) (error, bool) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", ircAddr)
	if err != nil {
		cb.reportStatus(Disconnected("TCP error"))
		return fmt.Errorf("dial: %w", err), false
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	nick := fmt.Sprintf("justinfan%d", 1000+rand.Intn(90000))

	if err := writeLine(conn, "CAP REQ :twitch.tv/membership twitch.tv/tags twitch.tv/commands"); err != nil {
		return fmt.Errorf("cap req: %w", err), false
	}
	if err := writeLine(conn, "PASS oauth:"+tp.Token()); err != nil {
		return fmt.Errorf("pass: %w", err), false
	}
	if err := writeLine(conn, "NICK "+nick); err != nil {
		return fmt.Errorf("nick: %w", err), false
	}

	cb.reportStatus(Authenticating(attempt))

	for {
		if ctx.Err() != nil {
			return nil, false
		}
		conn.SetReadDeadline(time.Now().Add(authReadTimeout))
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("auth read: %w", err), false
		}
		msg, ok := ircmsg.Parse(line)
		if !ok {
			continue
		}
		if msg.Command == ircmsg.ReplyWelcome {
			break
		}
		if noticeText, isAuthFail := authFailureText(msg); isAuthFail {
			return errors.New(noticeText), true
		}
	}

	cb.reportStatus(Connected())

	if err := writeLine(conn, "JOIN #"+channel); err != nil {
		return fmt.Errorf("join: %w", err), false
	}

	joined := false
	joinDeadline := time.Now().Add(authReadTimeout)
	for !joined {
		if ctx.Err() != nil {
			return nil, false
		}
		if time.Now().After(joinDeadline) {
			return errors.New("timed out waiting for join echo"), false
		}
		conn.SetReadDeadline(joinDeadline)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("join read: %w", err), false
		}
		msg, ok := ircmsg.Parse(line)
		if !ok {
			continue
		}
		if msg.Command == ircmsg.CmdJoin && strings.EqualFold(msg.PrefixUsername(), nick) {
			joined = true
		}
	}

	return steadyState(ctx, conn, reader, channel, cb)
}

// steadyState reads lines until the connection is judged dead, a RECONNECT
// arrives, or ctx is cancelled, applying the liveness and rate-drop rules
// below.
func steadyState(ctx context.Context, conn net.Conn, reader *bufio.Reader, channel string, cb workerCallbacks) (error, bool) {
	lastInbound := time.Now()
	lastRateCheck := time.Now()
	lastRateTriggeredPing := time.Time{}
	pingPending := false
	var pingSentAt time.Time
	var privmsgTimes []time.Time

	for {
		if ctx.Err() != nil {
			return nil, false
		}

		conn.SetReadDeadline(time.Now().Add(steadyReadTimeout))
		line, err := reader.ReadString('\n')
		now := time.Now()

		if err != nil {
			if !isTimeoutErr(err) {
				return fmt.Errorf("read: %w", err), false
			}

			if now.Sub(lastInbound) > silenceDeadTimeout {
				return errors.New("connection silent for 4 minutes"), false
			}
			if pingPending && now.Sub(pingSentAt) > pingReplyTimeout {
				return errors.New("health ping unanswered"), false
			}

			shouldPing := !pingPending && now.Sub(lastInbound) >= idlePingInterval

			if now.Sub(lastRateCheck) >= rateCheckInterval {
				lastRateCheck = now
				privmsgTimes = trimOlderThan(privmsgTimes, now, rateWindow)
				if rateDropped(privmsgTimes, now) && now.Sub(lastRateTriggeredPing) >= rateTriggerCooldown {
					shouldPing = true
					lastRateTriggeredPing = now
				}
			}

			if shouldPing {
				if err := writeLine(conn, "PING :health-check"); err != nil {
					return fmt.Errorf("ping: %w", err), false
				}
				pingPending = true
				pingSentAt = now
			}
			continue
		}

		lastInbound = now
		msg, ok := ircmsg.Parse(line)
		if !ok {
			continue
		}

		switch msg.Command {
		case ircmsg.CmdPing:
			token := ""
			if len(msg.Params) > 0 {
				token = msg.Params[len(msg.Params)-1]
			}
			if err := writeLine(conn, "PONG :"+token); err != nil {
				return fmt.Errorf("pong: %w", err), false
			}
		case ircmsg.CmdPong:
			pingPending = false
		case ircmsg.CmdReconnect:
			return nil, false
		case ircmsg.CmdNotice:
			if text, isAuthFail := authFailureText(msg); isAuthFail {
				return errors.New(text), true
			}
			cb.reportLine(line)
		case ircmsg.CmdPrivmsg:
			privmsgTimes = append(privmsgTimes, now)
			cb.reportLine(line)
		default:
			cb.reportLine(line)
		}
	}
}

// authFailureText reports whether an IRC NOTICE carries one of the known
// auth-failure phrases, returning its trailing text.
func authFailureText(msg ircmsg.Message) (string, bool) {
	if msg.Command != ircmsg.CmdNotice || len(msg.Params) == 0 {
		return "", false
	}
	text := msg.Params[len(msg.Params)-1]
	for _, phrase := range authFailurePhrases {
		if strings.Contains(text, phrase) {
			return text, true
		}
	}
	return "", false
}

func trimOlderThan(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	i := 0
	for i < len(times) && times[i].Before(cutoff) {
		i++
	}
	return times[i:]
}

// rateDropped compares the 30-second rate to the last-10-second rate; true
// if the short rate is below 70% of the long rate and there are enough
// samples to judge.
func rateDropped(times []time.Time, now time.Time) bool {
	if len(times) < 10 {
		return false
	}
	longRate := float64(len(times)) / rateWindow.Seconds()

	shortCutoff := now.Add(-rateShortWindow)
	shortCount := 0
	for _, t := range times {
		if t.After(shortCutoff) {
			shortCount++
		}
	}
	shortRate := float64(shortCount) / rateShortWindow.Seconds()

	return shortRate < 0.7*longRate
}

func authRetryDelay(attempt int) time.Duration {
	switch attempt {
	case 1:
		return time.Second
	case 2:
		return 2 * time.Second
	default:
		return 4 * time.Second
	}
}

func reconnectBackoff(attempt int) time.Duration {
	d := 2 * time.Second * time.Duration(int64(1)<<uint(attempt-1))
	if d > maxReconnectBackoff {
		return maxReconnectBackoff
	}
	return d
}

func isTimeoutErr(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func writeLine(conn net.Conn, s string) error {
	_, err := conn.Write([]byte(s + "\r\n"))
	return err
}
