package assistant

import (
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-site/internal/catalog"
)

const systemPromptTemplate = `You are the AI Health Assistant for %[1]s's medical practice in %[2]s.
Location: %[3]s.

Your Goal: Assist patients by answering questions about services, hours, and helping them book appointments.

Services: %[4]s.
Hours: %[5]s

Booking Process:
To book an appointment, you MUST collect the following 4 pieces of information from the user:
1. Full Name
2. Phone Number
3. Reason for Visit
4. Preferred Time Slot

Ask for these details naturally. You can ask for them one by one or all at once.
Once you have ALL four details, call the "%[6]s" tool.

After the tool runs successfully:
1. Confirm the appointment details to the user.
2. Provide the generated Booking ID.
3. Explicitly assure the user that a notification has been sent to %[7]s.
4. Confirm that their details have been automatically secured in the clinic's Notion database.

Emergency Protocol:
If the user describes symptoms of a life-threatening emergency (e.g., severe chest pain, trouble breathing, unconsciousness), DO NOT book an appointment. Immediately urge them to call the clinic's emergency line (%[8]s) or go to the nearest hospital.
`

// SystemInstruction builds the assistant's behavioral instruction from the catalog.
func SystemInstruction(c *catalog.Catalog) string {
	return fmt.Sprintf(systemPromptTemplate,
		c.Doctor.Name,
		c.Contact.Region,
		c.Contact.Address,
		strings.Join(c.ServiceTitles(), ", "),
		c.Contact.Hours,
		BookAppointmentTool,
		DoctorShortName(c),
		c.Contact.Phone,
	)
}

// Greeting is the first transcript entry shown when the widget opens.
func Greeting(c *catalog.Catalog) string {
	return fmt.Sprintf("Hello! I am %s's AI Assistant. I can answer your questions or help you book an appointment. How can I assist you today?", DoctorShortName(c))
}

// DoctorShortName is the name used in status labels and greetings.
func DoctorShortName(c *catalog.Catalog) string {
	if s := strings.TrimSpace(c.Doctor.ShortName); s != "" {
		return s
	}
	return c.Doctor.Name
}

// NewSessionConfig assembles the fixed session configuration: instruction,
// tool declarations and the web search capability.
func NewSessionConfig(c *catalog.Catalog, toolbox *Toolbox) SessionConfig {
	return SessionConfig{
		SystemInstruction: SystemInstruction(c),
		Tools:             toolbox.Specs(),
		WebSearch:         true,
	}
}
