// Package clinic holds the built-in scenarios for the dental clinic web
// application: the public site, the booking wizard and the admin panel.
package clinic

import (
	"sort"
	"strings"
	"time"

	"github.com/kuitang/clinicprobe/internal/errs"
	"github.com/kuitang/clinicprobe/internal/scenario"
)

// Credentials is the admin account the admin scenarios sign in with.
type Credentials struct {
	Email    string
	Password string
}

const (
	tagPublic  = "public"
	tagAdmin   = "admin"
	tagBooking = "booking"
	tagSmoke   = "smoke"
)

// ShortWait bounds the content assertions the clinic checks were written with.
const ShortWait = 3 * time.Second

// AdminLogin returns the steps that sign in to the admin panel.
func AdminLogin(creds Credentials) []scenario.Step {
	return scenario.New("admin-login").
		Navigate("/admin").
		Fill(scenario.ByPlaceholder("admin@omchabahildental.com.np"), creds.Email).
		Fill(scenario.ByPlaceholder("Enter your password"), creds.Password, scenario.AsSensitive()).
		Click(scenario.ByRole("button", "Sign In")).
		Build().Steps
}

// Catalog is an ordered, name-indexed set of scenarios.
type Catalog struct {
	scenarios []scenario.Scenario
	byName    map[string]int
}

// NewCatalog indexes scenarios. Names must be unique.
func NewCatalog(scenarios []scenario.Scenario) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]int, len(scenarios))}
	for _, sc := range scenarios {
		if _, dup := c.byName[sc.Name]; dup {
			return nil, errs.New(errs.InvalidArgument, "duplicate scenario name "+sc.Name)
		}
		c.byName[sc.Name] = len(c.scenarios)
		c.scenarios = append(c.scenarios, sc)
	}
	return c, nil
}

// Default returns the built-in clinic scenarios signed in with creds.
func Default(creds Credentials) *Catalog {
	c, err := NewCatalog(Scenarios(creds))
	if err != nil {
		panic(err)
	}
	return c
}

// All returns every scenario in catalog order.
func (c *Catalog) All() []scenario.Scenario {
	return append([]scenario.Scenario(nil), c.scenarios...)
}

// Lookup returns the scenario named name.
func (c *Catalog) Lookup(name string) (scenario.Scenario, bool) {
	i, ok := c.byName[strings.TrimSpace(name)]
	if !ok {
		return scenario.Scenario{}, false
	}
	return c.scenarios[i], true
}

// Select returns the named scenarios in the order given. Unknown names are
// reported together.
func (c *Catalog) Select(names []string) ([]scenario.Scenario, error) {
	var out []scenario.Scenario
	var unknown []string
	for _, name := range names {
		sc, ok := c.Lookup(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		out = append(out, sc)
	}
	if len(unknown) > 0 {
		return nil, errs.New(errs.InvalidArgument, "unknown scenario: "+strings.Join(unknown, ", "))
	}
	return out, nil
}

// Filter returns the scenarios carrying any of tags, in catalog order. No
// tags returns everything.
func (c *Catalog) Filter(tags ...string) []scenario.Scenario {
	if len(tags) == 0 {
		return c.All()
	}
	var out []scenario.Scenario
	for _, sc := range c.scenarios {
		for _, tag := range tags {
			if sc.HasTag(tag) {
				out = append(out, sc)
				break
			}
		}
	}
	return out
}

// Names returns the scenario names sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.scenarios))
	for _, sc := range c.scenarios {
		names = append(names, sc.Name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of scenarios.
func (c *Catalog) Len() int {
	return len(c.scenarios)
}

// Scenarios builds the clinic scenarios in their canonical order.
func Scenarios(creds Credentials) []scenario.Scenario {
	return []scenario.Scenario{
		HomepageSections(),
		BookingValidation(),
		AdminDashboard(creds),
		DoctorCreate(creds),
		AppointmentStatus(creds),
		ServiceManagement(creds),
		EnquiriesManagement(creds),
		UserManagement(creds),
		SecuritySettings(creds),
		SessionLogout(creds),
	}
}

func HomepageSections() scenario.Scenario {
	return scenario.New("homepage-sections").
		Describe("Home page renders its content sections").
		Tag(tagPublic, tagSmoke).
		Navigate("/").
		ExpectVisible(scenario.ByText("Testimonials"), scenario.WithTimeout(ShortWait)).
		Build()
}

// BookingValidation walks the booking wizard and submits an invalid email.
// The date, slot and doctor pickers carry no accessible names, so those
// steps address them structurally.
func BookingValidation() scenario.Scenario {
	next := scenario.ByRole("button", "Next").WithExact()
	return scenario.New("booking-validation").
		Describe("Booking form rejects an invalid email address").
		Tag(tagPublic, tagBooking).
		Navigate("/appointments/book").
		ExpectVisible(scenario.ByText("Choose Date & Time")).
		Click(scenario.ByRole("button", "Next week")).
		Click(scenario.ByCSS("button.aspect-square:not([disabled])").WithNth(1)).
		Click(scenario.ByCSS("div.grid-cols-3 > button")).
		Click(next).
		ExpectVisible(scenario.ByText("Select a Doctor")).
		Click(scenario.ByCSS("button.border-green-300")).
		Click(next).
		ExpectVisible(scenario.ByText("Your Details")).
		Fill(scenario.ByPlaceholder("Enter your full name"), "Test Patient").
		Fill(scenario.ByPlaceholder("your.email@example.com"), "not-an-email").
		Fill(scenario.ByPlaceholder("+977 9841234567"), "+977 9800000000").
		Click(scenario.ByRole("button", "Confirm Booking")).
		ExpectVisible(scenario.ByText("Please enter a valid email address"), scenario.WithTimeout(ShortWait)).
		Build()
}

func AdminDashboard(creds Credentials) scenario.Scenario {
	return scenario.New("admin-dashboard").
		Describe("Admin sign-in lands on the dashboard").
		Tag(tagAdmin, tagSmoke).
		Steps(AdminLogin(creds)...).
		ExpectVisible(scenario.ByText("Recent Appointments")).
		Build()
}

func DoctorCreate(creds Credentials) scenario.Scenario {
	return scenario.New("doctor-create").
		Describe("Add a doctor from the admin panel").
		Tag(tagAdmin).
		Steps(AdminLogin(creds)...).
		Navigate("/admin/doctors/new").
		Fill(scenario.ByLabel("Full Name"), "Dr. Probe Sharma").
		Fill(scenario.ByLabel("Email"), "probe.doctor@example.com").
		Fill(scenario.ByLabel("Phone Number"), "9800000001").
		Fill(scenario.ByLabel("Qualification"), "BDS, MDS").
		Fill(scenario.ByLabel("Consultation Fee (Rs.)"), "1000").
		Fill(scenario.ByLabel("About"), "Created by the clinic probe.").
		Click(scenario.ByRole("button", "Save Doctor")).
		ExpectVisible(scenario.ByText("Doctor Successfully Added!"),
			scenario.WithMessage("the doctor confirmation did not appear after saving")).
		Build()
}

func AppointmentStatus(creds Credentials) scenario.Scenario {
	return scenario.New("appointment-status").
		Describe("Confirm a pending appointment").
		Tag(tagAdmin).
		Steps(AdminLogin(creds)...).
		Navigate("/admin/appointments").
		Click(scenario.ByRole("button", "Pending")).
		Click(scenario.ByCSS(`button[title="Confirm"]`)).
		ExpectVisible(scenario.ByText("Appointment status updated to Confirmed")).
		Build()
}

// ServiceManagement adds a service. The page header and the dialog submit
// share the "Add Service" name; the dialog button comes second.
func ServiceManagement(creds Credentials) scenario.Scenario {
	add := scenario.ByRole("button", "Add Service")
	return scenario.New("service-management").
		Describe("Add a service from the admin panel").
		Tag(tagAdmin).
		Steps(AdminLogin(creds)...).
		Navigate("/admin/services").
		Click(add).
		Fill(scenario.ByLabel("Service Name"), "Probe Whitening").
		Fill(scenario.ByLabel("Description"), "Created by the clinic probe.").
		Fill(scenario.ByLabel("Price (Rs.)"), "1500").
		Fill(scenario.ByLabel("Duration (mins)"), "45").
		Fill(scenario.ByLabel("Category"), "Cosmetic").
		Click(add.WithNth(1)).
		ExpectVisible(scenario.ByText("Probe Whitening")).
		Build()
}

func EnquiriesManagement(creds Credentials) scenario.Scenario {
	return scenario.New("enquiries-management").
		Describe("Enquiries page lists enquiries with search").
		Tag(tagAdmin).
		Steps(AdminLogin(creds)...).
		Navigate("/admin/enquiries").
		ExpectVisible(scenario.ByRole("heading", "Enquiries")).
		ExpectVisible(scenario.ByPlaceholder("Search by name, email, or subject...")).
		Build()
}

func UserManagement(creds Credentials) scenario.Scenario {
	add := scenario.ByRole("button", "Add User")
	return scenario.New("user-management").
		Describe("Add a staff user from the admin panel").
		Tag(tagAdmin).
		Steps(AdminLogin(creds)...).
		Navigate("/admin/users").
		Click(add).
		Fill(scenario.ByLabel("Full Name"), "Probe Staff").
		Fill(scenario.ByLabel("Email"), "probe.staff@example.com").
		Select(scenario.ByLabel("Role"), "staff").
		Fill(scenario.ByLabel("Password").WithExact(), "Probe@12345", scenario.AsSensitive()).
		Fill(scenario.ByLabel("Confirm Password"), "Probe@12345", scenario.AsSensitive()).
		Click(add.WithNth(1)).
		ExpectVisible(scenario.ByText("User added")).
		Build()
}

func SecuritySettings(creds Credentials) scenario.Scenario {
	return scenario.New("security-settings").
		Describe("Security settings page shows the password form").
		Tag(tagAdmin).
		Steps(AdminLogin(creds)...).
		Navigate("/admin/settings/security").
		ExpectVisible(scenario.ByText("Security Settings")).
		ExpectVisible(scenario.ByText("Change Password")).
		Build()
}

func SessionLogout(creds Credentials) scenario.Scenario {
	return scenario.New("session-logout").
		Describe("Log out other sessions, then sign out").
		Tag(tagAdmin).
		Steps(AdminLogin(creds)...).
		Navigate("/admin/settings/security").
		Click(scenario.ByRole("button", "Logout All Other Sessions")).
		Click(scenario.ByRole("button", "Logout All").WithExact()).
		Click(scenario.ByRole("button", "Sign Out")).
		ExpectVisible(scenario.ByRole("button", "Sign In")).
		Build()
}
