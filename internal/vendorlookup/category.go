package vendorlookup

import (
	"regexp"
	"strings"
)

// categoryPattern pairs a vendor-name pattern with a device category. The
// table is ordered: automotive suppliers match before the broad consumer
// brands that would otherwise claim them.
type categoryPattern struct {
	pattern  *regexp.Regexp
	category string
}

func cat(expr, category string) categoryPattern {
	return categoryPattern{pattern: regexp.MustCompile(expr), category: category}
}

var categoryPatterns = []categoryPattern{
	// Vehicles
	cat(`tesla`, "Vehicle"),
	cat(`bmw|bayerische`, "Vehicle"),
	cat(`mercedes|daimler`, "Vehicle"),
	cat(`volkswagen|vw\s`, "Vehicle"),
	cat(`audi`, "Vehicle"),
	cat(`porsche`, "Vehicle"),
	cat(`ford\s+motor`, "Vehicle"),
	cat(`general\s+motors|gm\s|chevrolet|cadillac|buick`, "Vehicle"),
	cat(`toyota`, "Vehicle"),
	cat(`honda\s+motor`, "Vehicle"),
	cat(`nissan`, "Vehicle"),
	cat(`hyundai\s+motor`, "Vehicle"),
	cat(`kia\s+motor`, "Vehicle"),
	cat(`volvo\s+car`, "Vehicle"),
	cat(`jaguar|land\s+rover`, "Vehicle"),
	cat(`subaru`, "Vehicle"),
	cat(`mazda`, "Vehicle"),
	cat(`harman|jbl.*auto|samsung.*harman`, "Vehicle"),
	cat(`continental\s+auto`, "Vehicle"),
	cat(`bosch.*auto|bosch.*car`, "Vehicle"),
	cat(`denso`, "Vehicle"),
	cat(`aptiv|delphi`, "Vehicle"),
	cat(`rivian`, "Vehicle"),
	cat(`lucid`, "Vehicle"),
	cat(`polestar`, "Vehicle"),

	// Mobile phones
	cat(`apple`, "Mobile Device"),
	cat(`samsung.*electro`, "Mobile Device"),
	cat(`huawei`, "Mobile Device"),
	cat(`xiaomi`, "Mobile Device"),
	cat(`oneplus`, "Mobile Device"),
	cat(`oppo`, "Mobile Device"),
	cat(`vivo\s`, "Mobile Device"),
	cat(`google`, "Mobile Device"),
	cat(`motorola.*mobility`, "Mobile Device"),
	cat(`lg\s+electro`, "Mobile Device"),
	cat(`sony\s+mobile`, "Mobile Device"),
	cat(`zte`, "Mobile Device"),
	cat(`nokia`, "Mobile Device"),
	cat(`htc`, "Mobile Device"),
	cat(`realme`, "Mobile Device"),
	cat(`nothing\s+tech`, "Mobile Device"),
	cat(`fairphone`, "Mobile Device"),

	// Computers
	cat(`dell`, "Computer"),
	cat(`hewlett|hp\s|hp\sinc`, "Computer"),
	cat(`lenovo`, "Computer"),
	cat(`asus`, "Computer"),
	cat(`acer`, "Computer"),
	cat(`microsoft`, "Computer"),
	cat(`intel\s+corporate`, "Computer"),
	cat(`gigabyte`, "Computer"),
	cat(`msi\s`, "Computer"),
	cat(`asrock`, "Computer"),
	cat(`supermicro`, "Computer"),
	cat(`framework`, "Computer"),

	// Networking
	cat(`cisco`, "Network Device"),
	cat(`netgear`, "Network Device"),
	cat(`tp-link`, "Network Device"),
	cat(`d-link`, "Network Device"),
	cat(`ubiquiti`, "Network Device"),
	cat(`aruba`, "Network Device"),
	cat(`juniper`, "Network Device"),
	cat(`linksys`, "Network Device"),
	cat(`zyxel`, "Network Device"),
	cat(`mikrotik`, "Network Device"),
	cat(`fortinet`, "Network Device"),
	cat(`palo\s+alto`, "Network Device"),
	cat(`meraki`, "Network Device"),
	cat(`ruckus`, "Network Device"),
	cat(`eero`, "Network Device"),
	cat(`orbi|arlo.*net`, "Network Device"),
	cat(`synology`, "Network Device"),
	cat(`qnap`, "Network Device"),

	// Smart home and IoT
	cat(`amazon`, "Smart Device"),
	cat(`ring\s`, "Smart Device"),
	cat(`nest\s|google.*nest`, "Smart Device"),
	cat(`sonos`, "Smart Device"),
	cat(`philips.*lighting|signify|hue`, "Smart Device"),
	cat(`tuya`, "Smart Device"),
	cat(`espressif`, "IoT Device"),
	cat(`raspberry`, "IoT Device"),
	cat(`arduino`, "IoT Device"),
	cat(`particle`, "IoT Device"),
	cat(`shelly`, "Smart Device"),
	cat(`smartthings`, "Smart Device"),
	cat(`wemo|belkin`, "Smart Device"),
	cat(`ecobee`, "Smart Device"),
	cat(`honeywell.*home`, "Smart Device"),
	cat(`ikea.*trad`, "Smart Device"),
	cat(`meross`, "Smart Device"),
	cat(`govee`, "Smart Device"),

	// Appliances
	cat(`whirlpool`, "Appliance"),
	cat(`lg\s+innotek`, "Appliance"),
	cat(`samsung.*home`, "Appliance"),
	cat(`haier`, "Appliance"),
	cat(`bosch|bsh\s`, "Appliance"),
	cat(`electrolux`, "Appliance"),
	cat(`ge\s+appliance`, "Appliance"),
	cat(`miele`, "Appliance"),
	cat(`siemens.*home`, "Appliance"),
	cat(`dyson`, "Appliance"),
	cat(`roomba|irobot`, "Appliance"),
	cat(`roborock`, "Appliance"),
	cat(`ecovacs`, "Appliance"),

	// Entertainment
	cat(`roku`, "Entertainment"),
	cat(`apple\s+tv`, "Entertainment"),
	cat(`nvidia.*shield`, "Entertainment"),
	cat(`chromecast`, "Entertainment"),
	cat(`fire\s+tv`, "Entertainment"),

	// Gaming
	cat(`nintendo`, "Gaming Console"),
	cat(`playstation|sie\s`, "Gaming Console"),
	cat(`xbox|microsoft.*xbox`, "Gaming Console"),
	cat(`valve`, "Gaming Console"),
	cat(`steam\s+deck`, "Gaming Console"),

	// Wearables
	cat(`fitbit`, "Wearable"),
	cat(`garmin`, "Wearable"),
	cat(`whoop`, "Wearable"),
	cat(`oura`, "Wearable"),
	cat(`polar\s+electro`, "Wearable"),

	// Cameras
	cat(`ring|arlo|wyze|eufy|reolink|hikvision|dahua`, "Camera"),
	cat(`nest.*cam|google.*cam`, "Camera"),
	cat(`blink`, "Camera"),
	cat(`logitech.*circle`, "Camera"),
	cat(`gopro`, "Camera"),
	cat(`dji`, "Camera"),

	// Printers
	cat(`canon|epson|brother|xerox|lexmark|ricoh|kyocera`, "Printer"),

	// TVs
	cat(`vizio|tcl|hisense|roku.*tv|lg.*tv|samsung.*tv`, "Smart TV"),
	cat(`sony.*bravia`, "Smart TV"),
	cat(`toshiba.*tv`, "Smart TV"),

	// Virtual machines
	cat(`vmware`, "Virtual Machine"),
	cat(`virtualbox|oracle.*vm`, "Virtual Machine"),
	cat(`xen\s|xensource`, "Virtual Machine"),
	cat(`microsoft.*hyper-v`, "Virtual Machine"),
	cat(`parallels`, "Virtual Machine"),
	cat(`qemu`, "Virtual Machine"),
}

// GuessDeviceType maps a vendor name to a device category, or "" when no
// pattern matches. Known virtual machine MACs short-circuit the table.
func GuessDeviceType(vendor string, isVM bool) string {
	if isVM {
		return "Virtual Machine"
	}
	lower := strings.ToLower(vendor)
	for _, p := range categoryPatterns {
		if p.pattern.MatchString(lower) {
			return p.category
		}
	}
	return ""
}
