package extract

// ListingSelectors configures extraction from directory listing pages. Every
// list is tried in order.
type ListingSelectors struct {
	Card        string   `mapstructure:"card"`
	Company     []string `mapstructure:"company"`
	ContactName []string `mapstructure:"contact_name"`
	Address     []string `mapstructure:"address"`
	Website     []string `mapstructure:"website"`
	MemberType  []string `mapstructure:"member_type"`
	NextPage    string   `mapstructure:"next_page"`
}

// ProfileSelectors configures extraction from a member profile page.
type ProfileSelectors struct {
	Content     string   `mapstructure:"content"`
	FirstName   string   `mapstructure:"first_name"`
	LastName    string   `mapstructure:"last_name"`
	ContactName []string `mapstructure:"contact_name"`
	Phone       []string `mapstructure:"phone"`
	Website     []string `mapstructure:"website"`
	MemberType  []string `mapstructure:"member_type"`
	City        []string `mapstructure:"city"`
	Province    []string `mapstructure:"province"`
	Address     []string `mapstructure:"address"`
}

// DefaultListingSelectors matches the Wild Apricot member directory markup.
func DefaultListingSelectors() ListingSelectors {
	return ListingSelectors{
		Card:        `a[href*="/Sys/PublicProfile/"], .member-card`,
		Company:     []string{".company", ".org"},
		ContactName: []string{"h3", ".name"},
		Address:     []string{".address", ".location"},
		Website:     []string{".website a"},
		MemberType:  []string{".member-type", ".type"},
		NextPage:    `a[rel="next"], .next:not(.disabled)`,
	}
}

const memberFormField = "#FunctionalBlock1_ctl00_ctl00_memberProfile_MemberForm_memberFormRepeater_"

// DefaultProfileSelectors matches the Wild Apricot public profile markup.
func DefaultProfileSelectors() ProfileSelectors {
	return ProfileSelectors{
		Content:     "#idContent",
		FirstName:   memberFormField + "ctl00_TextBoxLabel10595865",
		LastName:    memberFormField + "ctl01_TextBoxLabel10595866",
		ContactName: []string{".profileHeaderContainer h2"},
		Phone:       []string{".fieldPhone"},
		Website:     []string{".website a"},
		MemberType:  []string{".profileHeaderContainer h3"},
		City:        []string{memberFormField + "ctl08_TextBoxLabel10596140"},
		Province:    []string{memberFormField + "ctl09_TextBoxLabel10596141"},
		Address:     []string{".address"},
	}
}
