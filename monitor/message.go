package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sininliny/Your-Program-is-Terminated/mail"
)

const (
	senderName = "Termination Monitor"
	separator  = "----------------------------------------"
	footer     = "This is an automated message from the Your-Program-is-Terminated library."

	timeLayout = "2006-01-02 15:04:05 MST"
)

// report composes the termination email for one outcome.
func (m *Monitor) report(o Outcome) mail.Email {
	var subject, status string
	switch o.Kind {
	case OutcomeSuccess:
		subject = "[INFO] Your program is terminated: Success"
		status = "Success"
	case OutcomeTerminated:
		subject = "[ALERT] Your program is terminated: Killed by signal"
		status = fmt.Sprintf("Terminated by signal (%s)", o.Signal)
	default:
		subject = "[ALERT] Your program is terminated: Crashed"
		status = "Crashed"
	}

	var body strings.Builder
	body.WriteString("Your program monitoring report:\n\n")
	fmt.Fprintf(&body, "Host Machine: %s\n", m.hostname)
	fmt.Fprintf(&body, "Program: %s\n", m.program)
	fmt.Fprintf(&body, "Status: %s\n", status)
	fmt.Fprintf(&body, "Start Time: %s\n", o.StartedAt.Format(timeLayout))
	fmt.Fprintf(&body, "End Time: %s\n", o.EndedAt.Format(timeLayout))
	fmt.Fprintf(&body, "Duration: %s\n", o.Duration().Round(time.Millisecond))
	body.WriteString(separator + "\n")

	switch o.Kind {
	case OutcomeFailure:
		body.WriteString("Error Logs / Traceback:\n")
		fmt.Fprintf(&body, "%s: %s\n", o.ErrorType, o.ErrorMessage)
		if o.StackTrace != "" {
			body.WriteString(o.StackTrace)
			body.WriteString("\n")
		}
	case OutcomeTerminated:
		fmt.Fprintf(&body, "Process terminated by signal %s before the monitored region finished.\n", o.Signal)
	default:
		body.WriteString("The monitored region completed without errors.\n")
	}

	body.WriteString(separator + "\n")
	body.WriteString(footer + "\n")

	return m.email(subject, body.String())
}

// startupNotice composes the optional "monitoring activated" email sent
// when the region starts.
func (m *Monitor) startupNotice(started time.Time) mail.Email {
	subject := "[INFO] Monitoring Activated: Your Program Started"

	var body strings.Builder
	body.WriteString("Program monitoring has started successfully.\n\n")
	fmt.Fprintf(&body, "Host Machine: %s\n", m.hostname)
	fmt.Fprintf(&body, "Program: %s\n", m.program)
	fmt.Fprintf(&body, "Start Time: %s\n", started.Format(timeLayout))
	body.WriteString(separator + "\n")
	body.WriteString("You will receive another email when the program terminates (success or failure).\n")

	return m.email(subject, body.String())
}

func (m *Monitor) email(subject, body string) mail.Email {
	return mail.Email{
		From:    mail.Address{Name: senderName, Address: m.cfg.SenderEmail},
		To:      mail.Address{Address: m.cfg.RecipientEmail},
		Subject: subject,
		Body:    body,
	}
}
